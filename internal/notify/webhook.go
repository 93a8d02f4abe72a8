package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// webhookConfig is the per-kind configuration for the webhook backend.
type webhookConfig struct {
	// URL is the literal webhook URL. Prefer URLEnv for secret-bearing URLs.
	URL string `yaml:"url"`

	// URLEnv names the environment variable holding the webhook URL.
	// Takes precedence over URL when both are set.
	URLEnv string `yaml:"url_env"`

	// Flavor selects the payload shape: slack | teams | generic.
	Flavor string `yaml:"flavor"`
}

// WebhookNotifier posts alerts as JSON to a single webhook URL.
type WebhookNotifier struct {
	name   string
	url    string
	flavor string
	client *http.Client
}

func newWebhookNotifier(name string, conf *yaml.Node) (*WebhookNotifier, error) {
	var wc webhookConfig
	if err := decodeConf(conf, &wc); err != nil {
		return nil, fmt.Errorf("notifier %q: %w", name, err)
	}

	url := wc.URL
	if wc.URLEnv != "" {
		url = os.Getenv(wc.URLEnv)
	}
	if url == "" {
		return nil, fmt.Errorf("notifier %q: url (or url_env with a set variable) is required", name)
	}

	flavor := wc.Flavor
	if flavor == "" {
		flavor = "generic"
	}
	switch flavor {
	case "slack", "teams", "generic":
	default:
		return nil, fmt.Errorf("notifier %q: unknown flavor %q", name, flavor)
	}

	return &WebhookNotifier{
		name:   name,
		url:    url,
		flavor: flavor,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send posts msg to the webhook. A response of HTTP 400 or above is an error.
func (n *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	var payload any
	switch n.flavor {
	case "slack":
		payload = map[string]string{
			"text": fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body),
		}
	case "teams":
		payload = map[string]any{
			"@type":    "MessageCard",
			"@context": "http://schema.org/extensions",
			"summary":  msg.Title,
			"title":    msg.Title,
			"text":     msg.Body,
		}
	default:
		payload = map[string]any{
			"title":   msg.Title,
			"body":    msg.Body,
			"sent_at": time.Now().UTC(),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
