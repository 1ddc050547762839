// Package reload tells connected browsers that the build changed.
//
// A Hub accepts WebSocket clients and broadcasts one message per handled
// watcher event. Its Notify method has the watcher's OnEvent signature.
package reload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/watcher"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// Message is what clients receive.
type Message struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages reload clients. Register, unregister and broadcast all go
// through one goroutine.
type Hub struct {
	logger         logging.Logger
	originPatterns []string

	clientsMutex sync.RWMutex
	clients      map[*client]struct{}
	closing      sync.WaitGroup

	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns allows cross-origin clients matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.originPatterns = patterns }
}

// NewHub creates a running Hub.
func NewHub(logger logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		logger:     logger.WithComponent("reload"),
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client, 8),
		unregister: make(chan *client, 8),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

// ServeHTTP upgrades the request and keeps the client until it disconnects
// or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
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

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.writeTo(c)
	h.readFrom(c)
	h.drop(c)
}

// Notify broadcasts a reload message. It never blocks on slow clients.
func (h *Hub) Notify(kind watcher.EventKind, path string) {
	data, err := json.Marshal(Message{
		Type:      "reload",
		Kind:      kind.String(),
		Path:      path,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error(h.ctx, err, "Cannot encode reload message")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, errors.New("broadcast buffer full"), "Dropping reload message", "path", path)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and stops the hub.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(h.cancel)
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clientsMutex.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "Reload client connected", "clients", n)

		case c := <-h.unregister:
			h.remove(c, websocket.StatusNormalClosure, "")

		case msg := <-h.broadcast:
			h.clientsMutex.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					go h.drop(c)
				}
			}
			h.clientsMutex.RUnlock()

		case <-h.ctx.Done():
			h.clientsMutex.RLock()
			clients := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.clientsMutex.RUnlock()
			for _, c := range clients {
				h.remove(c, websocket.StatusGoingAway, "server shutting down")
			}
			h.closing.Wait()
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// remove is only called from run. The close handshake can take seconds on an
// unresponsive peer, so it runs outside the loop.
func (h *Hub) remove(c *client, code websocket.StatusCode, reason string) {
	h.clientsMutex.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.clientsMutex.Unlock()

	if ok {
		h.closing.Add(1)
		go func() {
			defer h.closing.Done()
			c.conn.Close(code, reason)
		}()
		h.logger.Debug(h.ctx, "Reload client disconnected", "clients", n)
	}
}

// readFrom discards client messages until the connection fails. The read
// context is never cancelled; shutdown closes the connection instead.
func (h *Hub) readFrom(c *client) {
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func (h *Hub) writeTo(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				h.drop(c)
				return
			}
		}
	}
}
