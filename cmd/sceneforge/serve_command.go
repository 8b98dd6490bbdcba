package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sceneforge/internal/api"
	"sceneforge/internal/config"
	"sceneforge/internal/generation"
	"sceneforge/internal/logging"
	"sceneforge/internal/oracle"
	"sceneforge/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				addr := bindFlag
				if addr == "" {
					addr = cfg.Paths.APIBind
				}
				if addr == "" {
					return errors.New("no bind address: set paths.api_bind in the config or pass --bind")
				}

				logger, err := ctx.serviceLogger(cfg)
				if err != nil {
					return err
				}

				orch := generation.New(st, oracle.NewClient(cfg.GetOracle()), cfg, logger)
				server := api.New(st, orch, logger)

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				logger.Info("starting api server", logging.String("addr", addr))
				return server.Run(runCtx, addr)
			})
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Listen address (host:port), overrides paths.api_bind")

	return cmd
}
