// Package websocket pushes page change notifications to connected
// browsers.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/athena-engine/athena/internal/logging"
	"github.com/athena-engine/athena/internal/registry"
)

// Message is sent to every client when a page changes.
type Message struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	File      string    `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageFromEvent converts a registry event.
func MessageFromEvent(ev registry.PageEvent) Message {
	return Message{
		Type:      "page_" + ev.Type.String(),
		Path:      ev.Entry.Path,
		File:      ev.Entry.File,
		Timestamp: ev.Timestamp,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them. Each client
// has a buffered send queue; a client whose queue is full is dropped.
type Hub struct {
	logger         logging.Logger
	originPatterns []string
	writeTimeout   time.Duration

	clientsMutex sync.RWMutex
	clients      map[*client]struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown atomic.Bool
}

// NewHub creates a hub. originPatterns are passed to websocket.Accept;
// an empty list only allows same-host origins.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:         logger.WithComponent("websocket"),
		originPatterns: originPatterns,
		writeTimeout:   10 * time.Second,
		clients:        make(map[*client]struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register(c)
	defer h.unregister(c)

	h.logger.Debug(r.Context(), "WebSocket client connected", "remote", r.RemoteAddr, "clients", h.Clients())

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx once the peer closes.
	ctx := conn.CloseRead(h.ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}
		}
	}
}

func (h *Hub) register(c *client) {
	h.clientsMutex.Lock()
	h.clients[c] = struct{}{}
	h.clientsMutex.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.clientsMutex.Lock()
	delete(h.clients, c)
	h.clientsMutex.Unlock()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// Broadcast sends msg to every connected client.
func (h *Hub) Broadcast(msg Message) {
	if h.shutdown.Load() {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal broadcast message")
		return
	}

	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Send buffer full; the writer sees the closed channel and drops the client.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Forward broadcasts every event from events until the channel closes or
// ctx is done.
func (h *Hub) Forward(ctx context.Context, events <-chan registry.PageEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(MessageFromEvent(ev))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client. Later upgrades are refused.
func (h *Hub) Shutdown(ctx context.Context) error {
	if !h.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	h.cancel()

	for h.Clients() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}
