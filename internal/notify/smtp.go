package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	mail "github.com/wneessen/go-mail"
	"gopkg.in/yaml.v3"
)

// requestQueueDepth is the capacity of the worker's inbound FIFO queue.
const requestQueueDepth = 64

// smtpConfig is the per-kind configuration for the smtp backend.
type smtpConfig struct {
	// Host is the SMTP server hostname.
	Host string `yaml:"host"`

	// Port defaults to 587 (submission with STARTTLS).
	Port int `yaml:"port"`

	// Username authenticates the SMTP session and doubles as the default
	// sender address when From is empty.
	Username string `yaml:"username"`

	// PasswordEnv names the environment variable holding the SMTP password.
	PasswordEnv string `yaml:"password_env"`

	// From optionally overrides the sender address.
	From string `yaml:"from"`

	// FromName is the optional display name for the sender.
	FromName string `yaml:"from_name"`

	// Recipients receive every alert; one outbound email is built per entry.
	Recipients []smtpRecipient `yaml:"recipients"`
}

type smtpRecipient struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

// smtpRequest is one delivery handed to the worker. The reply channel has
// capacity 1 so the worker never blocks reporting a result.
type smtpRequest struct {
	email *mail.Msg
	rcpt  string
	reply chan error

	shutdown bool
}

// SMTPNotifier delivers alerts by email through a single serial worker.
//
// SMTP protocol state (one transport session) must never be touched
// concurrently, so all network I/O is pinned to one worker goroutine that
// drains a FIFO request queue. Send enqueues one email per configured
// recipient and waits for every per-recipient result; a failed recipient is
// logged and does not cancel the others.
type SMTPNotifier struct {
	name       string
	from       smtpRecipient
	recipients []smtpRecipient

	requests chan smtpRequest
	done     chan struct{} // closed when the worker exits

	mu   sync.Mutex
	down bool

	// sendFn performs the actual network delivery. Injectable for tests.
	sendFn func(ctx context.Context, rcpt string, email *mail.Msg) error
}

func newSMTPNotifier(name string, conf *yaml.Node) (*SMTPNotifier, error) {
	var sc smtpConfig
	if err := decodeConf(conf, &sc); err != nil {
		return nil, fmt.Errorf("notifier %q: %w", name, err)
	}

	if sc.Host == "" {
		return nil, fmt.Errorf("notifier %q: host is required", name)
	}
	if sc.Username == "" {
		return nil, fmt.Errorf("notifier %q: username is required", name)
	}
	if len(sc.Recipients) == 0 {
		return nil, fmt.Errorf("notifier %q: at least one recipient is required", name)
	}
	for i, r := range sc.Recipients {
		if r.Address == "" {
			return nil, fmt.Errorf("notifier %q: recipients[%d]: address is required", name, i)
		}
	}

	port := sc.Port
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(sc.Username),
		mail.WithPassword(os.Getenv(sc.PasswordEnv)),
	}
	client, err := mail.NewClient(sc.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notifier %q: smtp client: %w", name, err)
	}

	from := smtpRecipient{Address: sc.From, Name: sc.FromName}
	if from.Address == "" {
		from.Address = sc.Username
	}

	n := &SMTPNotifier{
		name:       name,
		from:       from,
		recipients: sc.Recipients,
		requests:   make(chan smtpRequest, requestQueueDepth),
		done:       make(chan struct{}),
		sendFn: func(ctx context.Context, _ string, email *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, email)
		},
	}
	go n.worker()
	return n, nil
}

// Send builds one email per configured recipient, submits all of them to the
// worker, then waits until every delivery attempt has completed. Per-recipient
// results are logged; they are independent of each other and never surfaced.
// Send returns ErrShutdown if the backend has been shut down.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	pending := make([]smtpRequest, 0, len(n.recipients))
	for _, rcpt := range n.recipients {
		email, err := n.buildEmail(rcpt, msg)
		if err != nil {
			slog.Error("smtp: build email failed",
				"notifier", n.name, "rcpt", rcpt.Address, "err", err)
			continue
		}
		req := smtpRequest{email: email, rcpt: rcpt.Address, reply: make(chan error, 1)}
		if err := n.enqueue(req); err != nil {
			return err
		}
		pending = append(pending, req)
	}

	for _, req := range pending {
		select {
		case err := <-req.reply:
			if err != nil {
				slog.Error("smtp: delivery failed",
					"notifier", n.name, "rcpt", req.rcpt, "err", err)
			} else {
				slog.Debug("smtp: delivered", "notifier", n.name, "rcpt", req.rcpt)
			}
		case <-n.done:
			return ErrShutdown
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown submits a shutdown marker behind any queued deliveries and waits
// for the worker to drain and stop. It consumes the backend: the first call
// returns nil, every later call (and any later Send) returns ErrShutdown.
func (n *SMTPNotifier) Shutdown() error {
	n.mu.Lock()
	if n.down {
		n.mu.Unlock()
		return ErrShutdown
	}
	n.down = true
	n.requests <- smtpRequest{shutdown: true}
	n.mu.Unlock()

	<-n.done
	return nil
}

// enqueue places req on the worker queue unless the backend is shut down.
// The down flag and the channel send share one critical section so a request
// can never land behind the shutdown marker.
func (n *SMTPNotifier) enqueue(req smtpRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down {
		return ErrShutdown
	}
	n.requests <- req
	return nil
}

// worker owns the SMTP session. It processes requests strictly in submission
// order and stops at the shutdown marker.
func (n *SMTPNotifier) worker() {
	defer close(n.done)
	for req := range n.requests {
		if req.shutdown {
			slog.Info("smtp: worker stopped", "notifier", n.name)
			return
		}
		req.reply <- n.sendFn(context.Background(), req.rcpt, req.email)
	}
}

func (n *SMTPNotifier) buildEmail(rcpt smtpRecipient, msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()

	var err error
	if n.from.Name != "" {
		err = email.FromFormat(n.from.Name, n.from.Address)
	} else {
		err = email.From(n.from.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("from %q: %w", n.from.Address, err)
	}

	if rcpt.Name != "" {
		err = email.AddToFormat(rcpt.Name, rcpt.Address)
	} else {
		err = email.To(rcpt.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("to %q: %w", rcpt.Address, err)
	}

	email.Subject(msg.Title)
	email.SetBodyString(mail.TypeTextPlain, msg.Body)
	return email, nil
}
