package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilhq/vigil/internal/app"
	"github.com/vigilhq/vigil/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("vigil starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"resources", len(cfg.Resources),
		"notifiers", len(cfg.Notifiers),
		"status_enabled", cfg.Status.Enabled,
	)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to build fleet", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Watch config file for changes. Sentinels are built once for the process
	// lifetime; a reload is logged so operators know a restart is needed.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk — restart to apply",
				"resources", len(updated.Resources))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	if hub := a.Hub(); hub != nil {
		go hub.Run(ctx)

		srv := &http.Server{
			Addr:              cfg.Status.Listen,
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("status endpoint listening", "addr", cfg.Status.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	a.Run(ctx)

	slog.Info("vigil shutting down")
	a.Shutdown()
}
