package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrShutdown is returned by backends whose delivery machinery has been shut
// down and by a second Shutdown call.
var ErrShutdown = errors.New("notify: backend is shut down")

// Message is one rendered alert. It is immutable once constructed; the same
// value is handed to every backend bound to the resource.
type Message struct {
	Title string
	Body  string
}

// Notifier delivers alert messages out-of-band.
//
// Send is best-effort: callers log a returned error but never retry or
// escalate it. Backends are shared — many sentinels may hold the same
// Notifier — and must be safe for concurrent Send calls.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the backend for the given kind, constructed from its opaque
// per-kind configuration. It fails with a descriptive error on an unknown
// kind or malformed configuration.
func New(kind, name string, conf *yaml.Node) (Notifier, error) {
	switch kind {
	case "smtp":
		return newSMTPNotifier(name, conf)
	case "webhook":
		return newWebhookNotifier(name, conf)
	case "nats":
		return newNATSNotifier(name, conf)
	default:
		return nil, fmt.Errorf("notify: unknown notifier type %q", kind)
	}
}

// decodeConf decodes an opaque per-kind config node into out.
func decodeConf(conf *yaml.Node, out any) error {
	if conf == nil || conf.Kind == 0 {
		return nil
	}
	if err := conf.Decode(out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
