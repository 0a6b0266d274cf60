package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grayline/skillbench/internal/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured benchmark cases and skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Cases:")
			for _, c := range cfg.Cases {
				fmt.Printf("  - %s (image: %s, timeout: %ds)\n", c.ID, c.ContainerImage, c.TimeoutSeconds)
			}
			fmt.Println("\nSkills:")
			for _, s := range cfg.Skills {
				fmt.Printf("  - %s (slug: %s)\n", s.ID, s.Slug)
			}
			return nil
		},
	}
}
