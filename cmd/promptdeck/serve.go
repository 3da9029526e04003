package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/promptdeck/core"
	"pkt.systems/promptdeck/httpapi"
	"pkt.systems/promptdeck/internal/appconfig"
	"pkt.systems/promptdeck/internal/eventbus"
	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/promptdeck/internal/runlog"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the promptdeck HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			store, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
			if err != nil {
				return err
			}
			if cfg.Persistence.Encrypt {
				if err := store.EnableEncryption(cfg.Persistence.KeyStorePath); err != nil {
					return err
				}
			}

			bus := eventbus.New(logger)
			registry := core.NewRegistry(core.Deps{
				Store:  store,
				Sink:   bus,
				Logger: logger,
			})
			runs := runlog.New(store)

			server := httpapi.NewServer(httpapi.Config{
				Addr:     cfg.HTTP.Addr,
				BasePath: cfg.HTTP.BasePath,
			}, registry, runs, bus)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("http server listening", "addr", cfg.HTTP.Addr, "state_dir", cfg.StateDir)
			return httpapi.ListenAndServe(ctx, cfg.HTTP.Addr, server.Handler())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
