package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/assetgrid/internal/config"
	"github.com/justyntemme/assetgrid/internal/logging"
	"github.com/justyntemme/assetgrid/internal/metrics"
	"github.com/justyntemme/assetgrid/internal/server"
)

func NewServeCmd(mgr **config.Manager) *cobra.Command {
	var (
		port int
		root string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the viewer's static files",
		Long: `Serve a directory of static files over HTTP.

Examples:
  assetgrid serve                  # serve the configured root on the configured port
  assetgrid serve --port 3000      # serve on port 3000
  assetgrid serve --root ./web     # serve ./web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := (*mgr).Get().Server
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("root") {
				cfg.Root = root
			}
			if cfg.Port <= 0 || cfg.Port > 65535 {
				return fmt.Errorf("invalid port %d", cfg.Port)
			}

			srv, err := server.New(cfg.Root)
			if err != nil {
				return err
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port), srv.Handler())
			})
			if cfg.MetricsAddr != "" {
				g.Go(func() error {
					return server.ListenAndServe(ctx, cfg.MetricsAddr, metrics.Handler())
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Server running at http://localhost:%d/\n", cfg.Port)
			if err := g.Wait(); err != nil {
				logging.L().Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&root, "root", "", "directory to serve (default from config, else working directory)")
	return cmd
}
