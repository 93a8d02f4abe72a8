package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigilhq/vigil/internal/checker"
	"github.com/vigilhq/vigil/internal/notify"
)

// state is the sentinel's position in its probe/wait cycle. Exactly one of
// "probe in flight" and "timer running" holds at any moment.
type state int

const (
	stateProbing state = iota
	stateWaiting
)

// Sentinel owns one resource's polling cadence. It alternates between probing
// the resource and waiting out the interval, diffs consecutive outcomes into
// error-lifecycle transitions and fans resulting alerts out to the bound
// notifiers.
//
// A Sentinel is built once from validated configuration and never
// reconfigured. All mutable state is owned exclusively by the Run goroutine.
type Sentinel struct {
	resource  string
	interval  time.Duration
	checker   checker.Checker
	notifiers []notify.Notifier

	state  state
	active checker.Failure // last alerted failure, nil while healthy
}

// New creates a Sentinel for one resource. notifiers are capability handles;
// the backends behind them are shared and outlive the sentinel.
func New(resource string, interval time.Duration, c checker.Checker, notifiers []notify.Notifier) *Sentinel {
	return &Sentinel{
		resource:  resource,
		interval:  interval,
		checker:   c,
		notifiers: notifiers,
		state:     stateProbing,
	}
}

// Resource returns the monitored resource's name.
func (s *Sentinel) Resource() string {
	return s.resource
}

// Run drives the probe/wait loop. The first probe fires immediately. Ticks
// never overlap: when a probe outlasts the interval, the next one starts
// right after it completes instead of on a fixed wall-clock grid.
//
// Run returns nil when ctx is cancelled. A non-nil return means an
// infrastructure fault: the probe mechanism itself broke, and this sentinel
// stops for good. Domain failures never end the loop.
func (s *Sentinel) Run(ctx context.Context) error {
	for {
		switch s.state {
		case stateProbing:
			out, err := s.checker.Probe(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("sentinel %q: probe: %w", s.resource, err)
			}
			s.processOutcome(ctx, out)
			s.state = stateWaiting

		case stateWaiting:
			timer := time.NewTimer(s.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			s.state = stateProbing
		}
	}
}

// processOutcome feeds the outcome through the lifecycle tracker and, when a
// transition occurred, dispatches the rendered alert to every bound notifier.
// Dispatch is fire-and-forget: the sentinel resumes its timer without waiting
// for delivery, and send errors are only logged.
func (s *Sentinel) processOutcome(ctx context.Context, out checker.Outcome) {
	ev, newActive := resolve(s.active, out, s.checker.SameFailure)
	s.active = newActive

	msg, ok := ev.message(s.resource)
	if !ok {
		return
	}

	slog.Info("resource transition",
		"resource", s.resource,
		"transition", ev.kind.String(),
		"title", msg.Title,
	)

	// Delivery must survive this tick's context; only process shutdown or
	// backend shutdown stops it.
	sendCtx := context.WithoutCancel(ctx)
	for _, n := range s.notifiers {
		n := n
		go func() {
			if err := n.Send(sendCtx, msg); err != nil {
				slog.Error("notifier send failed",
					"resource", s.resource, "err", err)
			}
		}()
	}
}
