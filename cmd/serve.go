package cmd

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/grayline/skillbench/internal/api"
	"github.com/grayline/skillbench/internal/catalog"
	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/executor"
	"github.com/grayline/skillbench/internal/orchestrate"
	"github.com/grayline/skillbench/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the trial evaluation API",
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

			cat := catalog.New(cfg.Cases, cfg.Skills)
			exec := executor.New(cat, st)
			orch := orchestrate.New(orchestrate.NewRunnerClient(cfg.Runner), cat, exec, st)
			server := api.NewServer(cfg.Server.APIToken, exec, orch, st)

			if len(cfg.Server.APIToken) < api.MinTokenLength {
				log.Printf("warning: api token shorter than %d chars, requests will be refused", api.MinTokenLength)
			}
			log.Printf("listening on %s (database %s, %d cases, %d skills)",
				cfg.Server.Addr, cfg.Database.Path, len(cfg.Cases), len(cfg.Skills))
			return http.ListenAndServe(cfg.Server.Addr, server.Handler())
		},
	}
}
