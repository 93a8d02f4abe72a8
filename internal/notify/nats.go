package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

// natsConfig is the per-kind configuration for the nats backend.
type natsConfig struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string `yaml:"url"`

	// Subject is the subject alerts are published to.
	Subject string `yaml:"subject"`
}

// natsPayload is the JSON body published for each alert.
type natsPayload struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// NATSNotifier publishes alerts as JSON messages to a NATS subject.
type NATSNotifier struct {
	name    string
	subject string
	conn    *nats.Conn

	mu   sync.Mutex
	down bool

	// drainFn tears down the connection. Injectable for tests.
	drainFn func() error
}

func newNATSNotifier(name string, conf *yaml.Node) (*NATSNotifier, error) {
	var nc natsConfig
	if err := decodeConf(conf, &nc); err != nil {
		return nil, fmt.Errorf("notifier %q: %w", name, err)
	}

	if nc.URL == "" {
		return nil, fmt.Errorf("notifier %q: url is required", name)
	}
	if nc.Subject == "" {
		return nil, fmt.Errorf("notifier %q: subject is required", name)
	}

	conn, err := nats.Connect(nc.URL, nats.Name("vigil"))
	if err != nil {
		return nil, fmt.Errorf("notifier %q: connect: %w", name, err)
	}

	n := &NATSNotifier{name: name, subject: nc.Subject, conn: conn}
	n.drainFn = func() error {
		if err := conn.Drain(); err != nil {
			conn.Close()
			return err
		}
		return nil
	}
	return n, nil
}

// Send publishes msg to the configured subject. It returns ErrShutdown once
// the backend has been shut down.
func (n *NATSNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	if n.down {
		n.mu.Unlock()
		return ErrShutdown
	}
	n.mu.Unlock()

	payload, err := json.Marshal(natsPayload{
		Title:  msg.Title,
		Body:   msg.Body,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish %q: %w", n.subject, err)
	}
	return nil
}

// Shutdown drains buffered messages and closes the connection. It consumes
// the backend: the first call returns the drain result, every later call (and
// any later Send) returns ErrShutdown. Draining completes asynchronously, so
// the down flag, not the connection state, is what makes this consume-once.
func (n *NATSNotifier) Shutdown() error {
	n.mu.Lock()
	if n.down {
		n.mu.Unlock()
		return ErrShutdown
	}
	n.down = true
	n.mu.Unlock()

	return n.drainFn()
}
