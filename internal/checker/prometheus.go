package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"
)

// promConfig is the per-kind configuration for the prometheus checker.
type promConfig struct {
	// URL is the component's Prometheus metrics endpoint.
	URL string `yaml:"url"`

	// Metric is the name of the metric family to evaluate. Counter, gauge and
	// untyped samples are summed across the family.
	Metric string `yaml:"metric"`

	// Op is the comparison the metric must satisfy to be healthy:
	// one of > >= < <= ==.
	Op string `yaml:"op"`

	// Threshold is the right-hand side of the comparison.
	Threshold float64 `yaml:"threshold"`

	// TimeoutMS bounds one probe end-to-end. Defaults to 10s.
	TimeoutMS uint64 `yaml:"timeout_ms"`
}

// promChecker scrapes a Prometheus text exposition and checks one metric
// family against a threshold. A violated comparison or an absent metric is a
// failure; so is any fetch or parse error.
type promChecker struct {
	resource  string
	url       string
	metric    string
	op        string
	threshold float64
	client    *http.Client
}

func newPromChecker(resource string, conf *yaml.Node) (Checker, error) {
	var pc promConfig
	if err := decodeConf(conf, &pc); err != nil {
		return nil, fmt.Errorf("checker %q: %w", resource, err)
	}

	if pc.URL == "" {
		return nil, fmt.Errorf("checker %q: url is required", resource)
	}
	if pc.Metric == "" {
		return nil, fmt.Errorf("checker %q: metric is required", resource)
	}
	switch pc.Op {
	case ">", ">=", "<", "<=", "==":
	default:
		return nil, fmt.Errorf("checker %q: unknown op %q", resource, pc.Op)
	}

	return &promChecker{
		resource:  resource,
		url:       pc.URL,
		metric:    pc.Metric,
		op:        pc.Op,
		threshold: pc.Threshold,
		client:    newProbeClient(pc.TimeoutMS),
	}, nil
}

func (c *promChecker) Probe(ctx context.Context) (Outcome, error) {
	mfs, err := fetchMetrics(ctx, c.client, c.url)
	if err != nil {
		// Cancellation means the process is exiting, not that the scrape
		// target broke.
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{Failure: &promFailure{kind: promFailureTransport, cause: err}}, nil
	}

	mf, ok := mfs[c.metric]
	if !ok {
		return Outcome{Failure: &promFailure{kind: promFailureMissing, metric: c.metric}}, nil
	}

	value := sumFamily(mf)
	if !compareFloat(value, c.op, c.threshold) {
		return Outcome{Failure: &promFailure{
			kind:      promFailureThreshold,
			metric:    c.metric,
			op:        c.op,
			threshold: c.threshold,
			value:     value,
		}}, nil
	}
	return Outcome{}, nil
}

// SameFailure compares failures by kind only. Two threshold violations of the
// same configured metric count as the same failure even when the observed
// value drifts between ticks; the value changing every scrape must not
// produce a Changed alert per tick.
func (c *promChecker) SameFailure(a, b Failure) bool {
	fa, okA := a.(*promFailure)
	fb, okB := b.(*promFailure)
	if !okA || !okB {
		return false
	}
	return fa.kind == fb.kind
}

const (
	promFailureTransport = iota
	promFailureMissing
	promFailureThreshold
)

// promFailure is the prometheus checker's Failure implementation.
type promFailure struct {
	kind      int
	metric    string
	op        string
	threshold float64
	value     float64
	cause     error
}

func (f *promFailure) Description() string {
	switch f.kind {
	case promFailureMissing:
		return fmt.Sprintf("Metric %q not present in scrape", f.metric)
	case promFailureThreshold:
		return fmt.Sprintf("Metric %q = %g violates %s %g", f.metric, f.value, f.op, f.threshold)
	default:
		return fmt.Sprintf("Metrics scrape error: %v", f.cause)
	}
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
