package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/report"
	"github.com/grayline/skillbench/internal/store"
)

func newInspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <run-id>",
		Short: "Reconstruct a persisted run and its mode deltas",
		Args:  cobra.ExactArgs(1),
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

			inspection, err := report.Inspect(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if format == "json" {
				return report.WriteJSON(inspection, os.Stdout)
			}
			fmt.Printf("Run:    %s (%s)\n", inspection.RunID, inspection.Status)
			fmt.Printf("Trials: %d, scores: %d\n", inspection.TrialCount, inspection.ScoreCount)
			printDelta("oracle_skill vs baseline", inspection.Deltas.OracleSkillVsBaseline)
			printDelta("library_selection vs baseline", inspection.Deltas.LibrarySelectionVsBaseline)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func printDelta(label string, d *report.ModeDelta) {
	if d == nil {
		fmt.Printf("%s: n/a\n", label)
		return
	}
	fmt.Printf("%s: overall %+.1f, deterministic %+.1f, safety %+.1f, efficiency %+.1f\n",
		label, d.OverallScoreDelta, d.DeterministicScoreDelta, d.SafetyScoreDelta, d.EfficiencyScoreDelta)
}
