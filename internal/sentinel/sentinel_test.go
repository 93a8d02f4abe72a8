package sentinel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/checker"
	"github.com/vigilhq/vigil/internal/notify"
)

const testInterval = 5 * time.Millisecond

// scriptChecker replays a fixed sequence of outcomes, then reports healthy.
type scriptChecker struct {
	mu     sync.Mutex
	script []checker.Outcome
	idx    int
	same   func(a, b checker.Failure) bool
}

func (c *scriptChecker) Probe(_ context.Context) (checker.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx < len(c.script) {
		out := c.script[c.idx]
		c.idx++
		return out, nil
	}
	c.idx++
	return checker.Outcome{}, nil
}

func (c *scriptChecker) SameFailure(a, b checker.Failure) bool {
	if c.same != nil {
		return c.same(a, b)
	}
	return sameByCode(a, b)
}

func (c *scriptChecker) probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}

// faultChecker fails at the infrastructure level on every probe.
type faultChecker struct {
	probes atomic.Int32
}

var errBrokenTransport = errors.New("transport exploded")

func (c *faultChecker) Probe(_ context.Context) (checker.Outcome, error) {
	c.probes.Add(1)
	return checker.Outcome{}, errBrokenTransport
}

func (c *faultChecker) SameFailure(_, _ checker.Failure) bool { return true }

// recordNotifier captures every message it receives.
type recordNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Message, len(n.msgs))
	copy(out, n.msgs)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// runSentinel starts s.Run and returns a cancel func plus a channel carrying
// the run error.
func runSentinel(t *testing.T, s *Sentinel) (cancel func(), done chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancelFn)
	return cancelFn, done
}

func TestSentinel_FirstProbeFiresImmediately(t *testing.T) {
	c := &scriptChecker{}
	// Interval long enough that only the immediate probe can happen.
	s := New("web", time.Hour, c, nil)

	cancel, done := runSentinel(t, s)

	if !waitFor(t, time.Second, func() bool { return c.probes() == 1 }) {
		t.Fatalf("probes = %d, want 1 immediately after start", c.probes())
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil on cancellation", err)
	}
}

func TestSentinel_AlertsOnlyOnTransitions(t *testing.T) {
	c := &scriptChecker{script: []checker.Outcome{
		healthy(), healthy(), failing(404), failing(404), healthy(),
	}}
	n := &recordNotifier{}
	s := New("web", testInterval, c, []notify.Notifier{n})

	cancel, done := runSentinel(t, s)

	if !waitFor(t, 2*time.Second, func() bool { return c.probes() >= 5 }) {
		t.Fatalf("probes = %d, want >= 5", c.probes())
	}
	// Fan-out is asynchronous; give the alerts a moment to land.
	waitFor(t, time.Second, func() bool { return len(n.messages()) >= 2 })
	cancel()
	<-done

	msgs := n.messages()
	if len(msgs) != 2 {
		t.Fatalf("alerts = %d, want 2 (new + resolved); got %+v", len(msgs), msgs)
	}
	if msgs[0].Title != "Error (new) web" {
		t.Errorf("first alert title = %q", msgs[0].Title)
	}
	if msgs[1].Title != "Error (resolved) web" {
		t.Errorf("second alert title = %q", msgs[1].Title)
	}
}

func TestSentinel_ChangedFailureAlerts(t *testing.T) {
	c := &scriptChecker{
		script: []checker.Outcome{failing(500), failing(503)},
		same:   func(a, b checker.Failure) bool { return false },
	}
	n := &recordNotifier{}
	s := New("api", testInterval, c, []notify.Notifier{n})

	cancel, done := runSentinel(t, s)

	if !waitFor(t, 2*time.Second, func() bool { return len(n.messages()) >= 2 }) {
		t.Fatalf("alerts = %d, want 2", len(n.messages()))
	}
	cancel()
	<-done

	msgs := n.messages()
	if msgs[0].Title != "Error (new) api" {
		t.Errorf("first alert title = %q", msgs[0].Title)
	}
	if msgs[1].Title != "Error (changed) api" {
		t.Errorf("second alert title = %q", msgs[1].Title)
	}
}

func TestSentinel_FanOutReachesEveryNotifier(t *testing.T) {
	c := &scriptChecker{script: []checker.Outcome{failing(500)}}
	notifiers := []*recordNotifier{{}, {}, {}}
	handles := make([]notify.Notifier, len(notifiers))
	for i, n := range notifiers {
		handles[i] = n
	}
	s := New("web", testInterval, c, handles)

	cancel, done := runSentinel(t, s)

	ok := waitFor(t, 2*time.Second, func() bool {
		for _, n := range notifiers {
			if len(n.messages()) < 1 {
				return false
			}
		}
		return true
	})
	cancel()
	<-done

	if !ok {
		t.Fatal("not every notifier received the alert")
	}
	for i, n := range notifiers {
		if got := len(n.messages()); got != 1 {
			t.Errorf("notifier %d received %d alerts, want 1", i, got)
		}
	}
}

func TestSentinel_InfraFaultIsFatal(t *testing.T) {
	c := &faultChecker{}
	s := New("web", testInterval, c, nil)

	_, done := runSentinel(t, s)

	select {
	case err := <-done:
		if !errors.Is(err, errBrokenTransport) {
			t.Errorf("Run() = %v, want wrapped %v", err, errBrokenTransport)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return on infra fault")
	}
	if got := c.probes.Load(); got != 1 {
		t.Errorf("probes = %d, want 1 (no retry after infra fault)", got)
	}
}

// overlapChecker records whether two probes were ever in flight at once.
type overlapChecker struct {
	inFlight   atomic.Int32
	overlapped atomic.Bool
	probes     atomic.Int32
}

func (c *overlapChecker) Probe(_ context.Context) (checker.Outcome, error) {
	if c.inFlight.Add(1) > 1 {
		c.overlapped.Store(true)
	}
	time.Sleep(10 * time.Millisecond) // probe outlasts the interval
	c.inFlight.Add(-1)
	c.probes.Add(1)
	return checker.Outcome{}, nil
}

func (c *overlapChecker) SameFailure(_, _ checker.Failure) bool { return true }

func TestSentinel_ProbesNeverOverlap(t *testing.T) {
	c := &overlapChecker{}
	s := New("slow", time.Millisecond, c, nil)

	cancel, done := runSentinel(t, s)

	waitFor(t, time.Second, func() bool { return c.probes.Load() >= 5 })
	cancel()
	<-done

	if c.overlapped.Load() {
		t.Error("two probes were in flight at once")
	}
	if c.probes.Load() < 5 {
		t.Errorf("probes = %d, want >= 5", c.probes.Load())
	}
}
