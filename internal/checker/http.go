package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"gopkg.in/yaml.v3"
)

// httpConfig is the per-kind configuration for the http checker.
type httpConfig struct {
	// URL is fetched with a GET on every probe.
	URL string `yaml:"url"`

	// TimeoutMS bounds one probe end-to-end. Defaults to 10s.
	TimeoutMS uint64 `yaml:"timeout_ms"`

	// Codes holds exactly one of the two lists. With Success set, any
	// response code not in the list is a failure. With Error set, any
	// response code in the list is a failure.
	Codes struct {
		Success []int `yaml:"success"`
		Error   []int `yaml:"error"`
	} `yaml:"codes"`
}

// httpChecker probes a URL and classifies the response status code against an
// allow-list or deny-list.
type httpChecker struct {
	resource string
	url      string
	client   *http.Client
	codes    []int
	allow    bool // true: codes is the success list, false: the error list
}

func newHTTPChecker(resource string, conf *yaml.Node) (Checker, error) {
	var hc httpConfig
	if err := decodeConf(conf, &hc); err != nil {
		return nil, fmt.Errorf("checker %q: %w", resource, err)
	}

	if hc.URL == "" {
		return nil, fmt.Errorf("checker %q: url is required", resource)
	}
	if _, err := url.Parse(hc.URL); err != nil {
		return nil, fmt.Errorf("checker %q: parse url: %w", resource, err)
	}

	var codes []int
	var allow bool
	switch {
	case len(hc.Codes.Success) > 0 && len(hc.Codes.Error) > 0:
		return nil, fmt.Errorf("checker %q: codes.success and codes.error are mutually exclusive", resource)
	case len(hc.Codes.Success) > 0:
		codes, allow = hc.Codes.Success, true
	case len(hc.Codes.Error) > 0:
		codes, allow = hc.Codes.Error, false
	default:
		return nil, fmt.Errorf("checker %q: one of codes.success or codes.error is required", resource)
	}
	for _, c := range codes {
		if c < 100 || c > 599 {
			return nil, fmt.Errorf("checker %q: invalid status code %d", resource, c)
		}
	}

	return &httpChecker{
		resource: resource,
		url:      hc.URL,
		client:   newProbeClient(hc.TimeoutMS),
		codes:    codes,
		allow:    allow,
	}, nil
}

// Probe issues a GET and classifies the status code. Transport-level failures
// (DNS, connection refused, timeout) are domain failures, not infra faults:
// they are exactly the kind of thing operators want alerted on.
func (c *httpChecker) Probe(ctx context.Context) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		// The URL was validated at construction; a failure here means the
		// request machinery itself is broken.
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// A cancelled probe is the process shutting down, not the resource
		// failing; surfacing it as a transport failure would fire a spurious
		// alert on exit.
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{Failure: &httpFailure{kind: httpFailureTransport, cause: err}}, nil
	}
	// The body carries no state across ticks — drain and discard it so the
	// connection can be reused.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	listed := false
	for _, code := range c.codes {
		if resp.StatusCode == code {
			listed = true
			break
		}
	}
	if listed != c.allow {
		return Outcome{Failure: &httpFailure{kind: httpFailureStatus, code: resp.StatusCode}}, nil
	}
	return Outcome{}, nil
}

// SameFailure treats two status-code failures as equal iff their codes match.
// A status-code failure never equals a transport failure. Two transport
// failures always compare equal, so e.g. a DNS failure followed by a timeout
// does not re-alert — a coarse approximation kept deliberately; comparing
// error categories would be stricter.
func (c *httpChecker) SameFailure(a, b Failure) bool {
	fa, okA := a.(*httpFailure)
	fb, okB := b.(*httpFailure)
	if !okA || !okB {
		return false
	}
	if fa.kind == httpFailureStatus && fb.kind == httpFailureStatus {
		return fa.code == fb.code
	}
	if fa.kind != fb.kind {
		return false
	}
	return true
}

const (
	httpFailureTransport = iota
	httpFailureStatus
)

// httpFailure is the http checker's Failure implementation.
type httpFailure struct {
	kind  int
	code  int   // set for httpFailureStatus
	cause error // set for httpFailureTransport
}

func (f *httpFailure) Description() string {
	if f.kind == httpFailureStatus {
		return fmt.Sprintf("Non-successful HTTP code: %d", f.code)
	}
	return fmt.Sprintf("HTTP request error: %v", f.cause)
}
