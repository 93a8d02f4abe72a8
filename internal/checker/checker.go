package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultProbeTimeout = 10 * time.Second

// Failure is a domain-level check failure: the resource was reached (or an
// attempt was made) and found unhealthy. Failures drive the alert lifecycle
// and never stop the sentinel.
type Failure interface {
	// Description returns the human-readable text used in alert bodies.
	Description() string
}

// Outcome is the result of one probe. A nil Failure means the resource is
// healthy. Outcomes carry no payload across ticks: whatever the probe fetched
// is discarded once the outcome is classified.
type Outcome struct {
	Failure Failure
}

// Healthy reports whether the probe found the resource healthy.
func (o Outcome) Healthy() bool {
	return o.Failure == nil
}

// Checker probes one external resource and classifies the result.
//
// Probe returns a non-nil error only for infrastructure faults: the probe
// mechanism itself broke in a way the checker cannot classify into a Failure.
// Such errors are fatal to the calling sentinel. Anything the checker can
// attribute to the resource (bad status, refused connection, timeout) must be
// reported as an Outcome Failure instead.
//
// The sentinel never overlaps Probe calls for one checker.
type Checker interface {
	Probe(ctx context.Context) (Outcome, error)

	// SameFailure reports whether two failures are equivalent for alerting
	// purposes. Equivalent consecutive failures are suppressed; a changed
	// failure produces a new alert.
	SameFailure(a, b Failure) bool
}

// New returns the checker for the given kind, constructed from its opaque
// per-kind configuration. It fails with a descriptive error on an unknown
// kind or malformed configuration; this happens once at startup, never
// mid-run.
func New(kind, resource string, conf *yaml.Node) (Checker, error) {
	switch kind {
	case "http":
		return newHTTPChecker(resource, conf)
	case "prometheus":
		return newPromChecker(resource, conf)
	default:
		return nil, fmt.Errorf("checker: unknown resource type %q", kind)
	}
}

// decodeConf decodes an opaque per-kind config node into out.
// A missing node decodes to the zero value so kinds with fully-optional
// settings still construct.
func decodeConf(conf *yaml.Node, out any) error {
	if conf == nil || conf.Kind == 0 {
		return nil
	}
	if err := conf.Decode(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// newProbeClient builds the HTTP client shared by the HTTP-based checkers.
func newProbeClient(timeoutMS uint64) *http.Client {
	timeout := defaultProbeTimeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	return &http.Client{Timeout: timeout}
}
