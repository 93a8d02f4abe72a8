package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vigilhq/vigil/internal/notify"
)

// Handler returns the status HTTP mux:
//
//	GET /healthz     — liveness probe
//	GET /api/status  — latest alert event per resource as JSON
//	GET /ws          — WebSocket alert stream
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h.Latest()) //nolint:errcheck
	})
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// HubNotifier adapts a Hub to the notify.Notifier interface for one resource,
// so sentinels can feed the status endpoint without knowing it exists.
type HubNotifier struct {
	hub      *Hub
	resource string
}

// NewHubNotifier returns a notifier handle publishing into hub under resource.
func NewHubNotifier(hub *Hub, resource string) *HubNotifier {
	return &HubNotifier{hub: hub, resource: resource}
}

// Send publishes the alert to the hub. It never fails.
func (n *HubNotifier) Send(_ context.Context, msg notify.Message) error {
	n.hub.Publish(Event{
		Resource: n.resource,
		Title:    msg.Title,
		Body:     msg.Body,
		At:       time.Now().UTC(),
	})
	return nil
}
