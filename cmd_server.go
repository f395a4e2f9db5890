package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/analysis-session/config"
	"github.com/jacokyle01/analysis-session/primaryserver"
	"github.com/jacokyle01/analysis-session/session"
	"github.com/jacokyle01/analysis-session/transport"
	"github.com/jacokyle01/analysis-session/worker"
)

func newServerCmd(flags *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the job queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			srv, err := openServer(cmd.Context(), cfg.Server, logger)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.StartServer(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the config)")
	return cmd
}

func newClientCmd(flags *globalFlags) *cobra.Command {
	var serverURL, enginePath string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Pull jobs from a server and analyze them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.Worker.ServerURL = serverURL
			}
			if enginePath != "" {
				cfg.Engine.Path = enginePath
			}

			engine, err := startEngine(cmd.Context(), cfg.Engine, logger)
			if err != nil {
				return err
			}
			defer engine.Close()
			return worker.NewClient(cfg.Worker, engine, logger).WorkLoop(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (overrides the config)")
	cmd.Flags().StringVar(&enginePath, "engine", "", "engine binary (overrides the config)")
	return cmd
}

// openServer builds a server with an in-memory store, or a SQLite store
// when a path is configured.
func openServer(ctx context.Context, cfg config.Server, logger *slog.Logger) (*primaryserver.Server, error) {
	var store primaryserver.Store
	if cfg.StorePath != "" {
		s, err := primaryserver.OpenSQLiteStore(ctx, cfg.StorePath)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return primaryserver.NewServer(cfg, store, logger), nil
}

func startEngine(ctx context.Context, cfg config.Engine, logger *slog.Logger) (*worker.Engine, error) {
	return worker.NewEngine(ctx, cfg.Session(logger), engineDialer(logger))
}

func engineDialer(logger *slog.Logger) session.Dialer {
	return transport.NewDialer(transport.Options{Logger: logger})
}
