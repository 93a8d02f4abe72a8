package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one alert as seen by the status endpoint.
type Event struct {
	Resource string    `json:"resource"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

// envelope is the JSON wrapper sent to WebSocket clients.
type envelope struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

// Hub manages WebSocket client connections and broadcasts every published
// alert event to all of them. It also remembers the most recent event per
// resource for the JSON status endpoint.
//
// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	last    map[string]Event
}

// client represents one connected WebSocket client. send is never closed;
// teardown is signaled through done so that concurrent broadcasters can never
// hit a closed channel.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// signalClose marks the client for teardown. Safe to call from any goroutine,
// any number of times.
func (c *client) signalClose() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		last:    make(map[string]Event),
	}
}

// Publish records ev as the resource's latest event and broadcasts it to all
// connected clients. Clients whose outgoing buffer is full are dropped.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(envelope{Event: "alert", Data: ev})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.last[ev.Resource] = ev
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		case <-c.done:
		default:
			h.unregister(c)
		}
	}
}

// Latest returns a copy of the most recent event per resource.
func (h *Hub) Latest() map[string]Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Event, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeWS upgrades the HTTP connection to WebSocket and serves the client.
// Each known resource's latest event is replayed on connect so the client has
// data right away. Blocks until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	for _, ev := range h.Latest() {
		if data, err := json.Marshal(envelope{Event: "alert", Data: ev}); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.signalClose()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.signalClose()
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-c.done:
			// Hub is shutting down or the client was dropped.
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
