package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/integrity"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and case container contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			unpinned := 0
			for _, c := range cfg.Cases {
				if err := integrity.ValidateContainerContract(c.ContainerImage); err != nil {
					fmt.Printf("case %s: image %s is not digest-pinned\n", c.ID, c.ContainerImage)
					unpinned++
				}
			}
			fmt.Printf("config ok: %d cases (%d unpinned), %d skills\n",
				len(cfg.Cases), unpinned, len(cfg.Skills))
			if unpinned > 0 {
				return fmt.Errorf("%d case(s) fail the container contract", unpinned)
			}
			return nil
		},
	}
}
