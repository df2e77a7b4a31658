package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted.

The knowledge base is created and seeded on startup if it does not exist.
The cluster connection is established on first use.

Examples:
  esfixer serve
  ESFIXER_SERVER_PORT=9000 esfixer serve --config esfixer.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seeded, err := a.knowledge.Ensure(ctx); err != nil {
		logger.Warn("knowledge base unavailable, fixes will use no expert advice", zap.Error(err))
	} else if seeded {
		logger.Info("knowledge base initialized", zap.String("index", a.knowledge.Index()))
	}

	srv, err := server.New(a.agent, a.es, logger, server.Config{
		Addr:         cfg.Server.Addr(),
		APIPrefix:    cfg.Server.APIPrefix,
		HistoryLimit: cfg.Agent.HistoryLimit,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
