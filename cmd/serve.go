package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/internal/observability"
	"github.com/MaTriXy/stagehand/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves one page session over HTTP",
		Long: `Serve opens a browser page and exposes it over HTTP: POST /v1/navigate
points it at a URL, then /v1/observe, /v1/act and /v1/extract resolve
instructions against it. The server runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := sessionConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			session, err := newSession(ctx, &cfg, logger)
			if err != nil {
				session.Shutdown()
				return fmt.Errorf("initialize session: %w", err)
			}
			defer session.Shutdown()

			srv := server.New(session.Engine, session.Page, logger)
			logger.Info("session ready",
				zap.String("session_id", session.Page.ID()),
				zap.String("addr", cfg.Server.Addr),
			)
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return serveCmd
}
