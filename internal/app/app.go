package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vigilhq/vigil/internal/checker"
	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/notify"
	"github.com/vigilhq/vigil/internal/sentinel"
	"github.com/vigilhq/vigil/internal/status"
)

// shutdowner is implemented by backends that own delivery machinery.
type shutdowner interface {
	Shutdown() error
}

// App wires configuration into a runnable fleet: named notification backends,
// one checker and one sentinel per resource, and the optional status hub.
type App struct {
	notifiers map[string]notify.Notifier
	runner    *sentinel.Runner
	hub       *status.Hub
}

// New builds the full fleet from cfg. It fails fast — before any polling
// starts — when a resource references an unknown notifier name, an
// unrecognized checker kind, or an unrecognized backend kind; the offending
// name or kind is always part of the error.
func New(cfg *config.Config) (*App, error) {
	notifiers := make(map[string]notify.Notifier, len(cfg.Notifiers))
	for i := range cfg.Notifiers {
		nc := cfg.Notifiers[i]
		n, err := notify.New(nc.Type, nc.Name, &nc.Config)
		if err != nil {
			return nil, fmt.Errorf("app: notifier %q: %w", nc.Name, err)
		}
		notifiers[nc.Name] = n
		slog.Info("registered notifier", "name", nc.Name, "type", nc.Type)
	}

	var hub *status.Hub
	if cfg.Status.Enabled {
		hub = status.NewHub()
	}

	sentinels := make([]*sentinel.Sentinel, 0, len(cfg.Resources))
	for i := range cfg.Resources {
		r := cfg.Resources[i]

		c, err := checker.New(r.Type, r.Name, &r.Config)
		if err != nil {
			return nil, fmt.Errorf("app: resource %q: %w", r.Name, err)
		}

		handles := make([]notify.Notifier, 0, len(r.Notifiers)+1)
		for _, name := range r.Notifiers {
			n, ok := notifiers[name]
			if !ok {
				return nil, fmt.Errorf("app: resource %q: unknown notifier name %q", r.Name, name)
			}
			handles = append(handles, n)
		}
		if hub != nil {
			handles = append(handles, status.NewHubNotifier(hub, r.Name))
		}

		sentinels = append(sentinels, sentinel.New(r.Name, r.Interval(), c, handles))
		slog.Info("registered resource",
			"name", r.Name, "type", r.Type, "interval", r.Interval())
	}

	return &App{
		notifiers: notifiers,
		runner:    sentinel.NewRunner(sentinels...),
		hub:       hub,
	}, nil
}

// Hub returns the status hub, or nil when the status endpoint is disabled.
func (a *App) Hub() *status.Hub {
	return a.hub
}

// Run drives the fleet until ctx is cancelled and all sentinels have stopped.
func (a *App) Run(ctx context.Context) {
	a.runner.Run(ctx)
}

// Shutdown tears down every backend that owns delivery machinery.
func (a *App) Shutdown() {
	for name, n := range a.notifiers {
		s, ok := n.(shutdowner)
		if !ok {
			continue
		}
		if err := s.Shutdown(); err != nil {
			slog.Warn("notifier shutdown", "name", name, "err", err)
		}
	}
}
