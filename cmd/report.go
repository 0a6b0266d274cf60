package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/report"
	"github.com/grayline/skillbench/internal/store"
)

func newReportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize persisted trials per evaluation mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			trials, err := st.AllScoredTrials(cmd.Context())
			if err != nil {
				return err
			}
			summaries := report.Summarize(trials)
			switch format {
			case "markdown":
				return report.WriteMarkdown(summaries, os.Stdout)
			case "json":
				return report.WriteJSON(summaries, os.Stdout)
			default:
				return report.WriteTable(summaries, os.Stdout)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, markdown, or json")
	return cmd
}
