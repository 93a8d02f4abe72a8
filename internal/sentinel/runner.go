package sentinel

import (
	"context"
	"log/slog"
	"sync"
)

// Runner drives a fleet of sentinels concurrently. Each resource's monitoring
// is isolated: one sentinel's fatal error is logged and does not stop its
// siblings.
type Runner struct {
	sentinels []*Sentinel
}

// NewRunner creates a Runner over the given sentinels.
func NewRunner(sentinels ...*Sentinel) *Runner {
	return &Runner{sentinels: sentinels}
}

// Run starts every sentinel in its own goroutine and blocks until all of them
// have stopped — normally only when ctx is cancelled, since a healthy
// sentinel runs forever.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.sentinels {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				slog.Error("sentinel stopped", "resource", s.resource, "err", err)
			}
		}()
	}
	wg.Wait()
}
