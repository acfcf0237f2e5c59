package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohik-agnext/docker-chatbot/internal/server"
	"github.com/mohik-agnext/docker-chatbot/internal/watcher"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the retrieval HTTP server",
		Long: `Start the HTTP server. The corpus is loaded and indexed in the
background; until warm-up completes, /search returns a retryable 503 and
/readyz reports not ready.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	log := slog.Default()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = orch.Close() }()

	// Warm up in the background so the health endpoints come up
	// immediately; the readiness gate holds search traffic until done.
	warmupDone := make(chan error, 1)
	go func() { warmupDone <- orch.Warmup(ctx) }()

	var w *watcher.Watcher
	if cfg.Corpus.Watch {
		w, err = watcher.New(cfg.Corpus.SnapshotPath, cfg.Corpus.WatchDebounce, orch.MarkStale, log)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		go w.Run(ctx)
	}

	srv := server.New(cfg, orch, log)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-warmupDone:
		if err != nil {
			log.Error("warmup failed", slog.String("error", err.Error()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return err
		}
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
