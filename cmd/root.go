package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "skillbench",
		Short: "Trial evaluation engine for skill benchmarking",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "skillbench.yaml", "config file path")
	root.AddCommand(newServeCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newValidateCmd())
	return root
}
