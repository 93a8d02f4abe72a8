package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	mail "github.com/wneessen/go-mail"
	"gopkg.in/yaml.v3"
)

// confNode parses a YAML fragment into a node usable as per-kind config.
func confNode(t *testing.T, content string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(content), &n); err != nil {
		t.Fatalf("parse test config: %v", err)
	}
	return &n
}

const smtpConf = `
host: smtp.example.com
username: alerts@example.com
password_env: SMTP_PASSWORD
recipients:
  - address: ops@example.com
    name: Ops
  - address: oncall@example.com
`

// newTestSMTP builds a backend whose network delivery is replaced by fn.
func newTestSMTP(t *testing.T, fn func(ctx context.Context, rcpt string, email *mail.Msg) error) *SMTPNotifier {
	t.Helper()
	n, err := newSMTPNotifier("mail", confNode(t, smtpConf))
	if err != nil {
		t.Fatalf("newSMTPNotifier: %v", err)
	}
	n.sendFn = fn
	t.Cleanup(func() { n.Shutdown() })
	return n
}

func TestSMTP_FanOutPerRecipient(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	n := newTestSMTP(t, func(_ context.Context, rcpt string, email *mail.Msg) error {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, rcpt)
		var buf bytes.Buffer
		if _, err := email.WriteTo(&buf); err != nil {
			t.Errorf("render email: %v", err)
		} else {
			rendered := buf.String()
			if !strings.Contains(rendered, "Subject: Error (new) web") {
				t.Errorf("rendered email missing subject:\n%s", rendered)
			}
			if !strings.Contains(rendered, rcpt) {
				t.Errorf("rendered email not addressed to %s:\n%s", rcpt, rendered)
			}
		}
		return nil
	})

	if err := n.Send(context.Background(), Message{Title: "Error (new) web", Body: "down"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Fatalf("deliveries = %v, want one per recipient", delivered)
	}
	if delivered[0] != "ops@example.com" || delivered[1] != "oncall@example.com" {
		t.Errorf("deliveries = %v, want configured order", delivered)
	}
}

// One recipient failing must not stop delivery to the others, and Send still
// returns nil; per-recipient results are independent.
func TestSMTP_FailedRecipientDoesNotCancelOthers(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	n := newTestSMTP(t, func(_ context.Context, rcpt string, _ *mail.Msg) error {
		mu.Lock()
		delivered = append(delivered, rcpt)
		mu.Unlock()
		if rcpt == "ops@example.com" {
			return errors.New("mailbox full")
		}
		return nil
	})

	if err := n.Send(context.Background(), Message{Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Errorf("deliveries = %v, want both recipients attempted", delivered)
	}
}

func TestSMTP_DeliveriesAreSerial(t *testing.T) {
	var inFlight, peak int32
	var mu sync.Mutex
	n := newTestSMTP(t, func(_ context.Context, _ string, _ *mail.Msg) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Send(context.Background(), Message{Title: "t", Body: "b"})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrent deliveries = %d, want 1", peak)
	}
}

// Shutdown drains requests already queued before it stops the worker.
func TestSMTP_ShutdownDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	var delivered int
	block := make(chan struct{})
	n := newTestSMTP(t, func(_ context.Context, _ string, _ *mail.Msg) error {
		<-block
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	sendDone := make(chan error, 1)
	go func() { sendDone <- n.Send(context.Background(), Message{Title: "t", Body: "b"}) }()

	// Wait until the worker is holding the first delivery, so both requests
	// are in front of the shutdown marker.
	time.Sleep(20 * time.Millisecond)

	shutDone := make(chan error, 1)
	go func() { shutDone <- n.Shutdown() }()

	close(block)

	if err := <-shutDone; err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	<-sendDone

	mu.Lock()
	defer mu.Unlock()
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2 (queue drained before stop)", delivered)
	}
}

func TestSMTP_ShutdownConsumesBackend(t *testing.T) {
	n := newTestSMTP(t, func(_ context.Context, _ string, _ *mail.Msg) error { return nil })

	if err := n.Shutdown(); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := n.Shutdown(); !errors.Is(err, ErrShutdown) {
		t.Errorf("second Shutdown = %v, want ErrShutdown", err)
	}
	if err := n.Send(context.Background(), Message{Title: "t", Body: "b"}); !errors.Is(err, ErrShutdown) {
		t.Errorf("Send after shutdown = %v, want ErrShutdown", err)
	}
}

func TestSMTP_ConstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{"missing host", `
username: alerts@example.com
recipients:
  - address: ops@example.com
`},
		{"missing username", `
host: smtp.example.com
recipients:
  - address: ops@example.com
`},
		{"no recipients", `
host: smtp.example.com
username: alerts@example.com
`},
		{"recipient without address", `
host: smtp.example.com
username: alerts@example.com
recipients:
  - name: Ops
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := newSMTPNotifier("mail", confNode(t, tc.conf)); err == nil {
				t.Error("newSMTPNotifier = nil error, want construction failure")
			}
		})
	}
}

func TestSMTP_SenderDefaultsToUsername(t *testing.T) {
	got := make(chan string, 2)
	n := newTestSMTP(t, func(_ context.Context, _ string, email *mail.Msg) error {
		var buf bytes.Buffer
		if _, err := email.WriteTo(&buf); err != nil {
			got <- fmt.Sprintf("render failed: %v", err)
			return nil
		}
		got <- buf.String()
		return nil
	})

	if err := n.Send(context.Background(), Message{Title: "t", Body: "b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rendered := <-got
	if !strings.Contains(rendered, "From:") || !strings.Contains(rendered, "alerts@example.com") {
		t.Errorf("rendered email does not carry the username as sender:\n%s", rendered)
	}
}
