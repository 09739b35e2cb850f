// Package live fans conversation and sync events out to websocket clients.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Hub keeps the set of connected clients and broadcasts every event that has a
// frame form to all of them. Delivery is best effort: a client whose write
// fails is dropped and there is no replay.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	// writeMu serializes broadcasts; a websocket allows one data writer at a
	// time. It is never held together with mu.
	writeMu sync.Mutex

	bus      *bus.Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub fed from b.
func NewHub(b *bus.Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns: map[*websocket.Conn]struct{}{},
		bus:   b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser dashboards may be served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Start subscribes to the bus. A single subscription keeps sync.completed in
// order with the conversation events around it; kinds without a frame form
// are skipped in publish.
func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	ch, unsub := h.bus.Subscribe("", 256)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				h.publish(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and closes every client.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	h.CloseAll()
}

func (h *Hub) publish(evt bus.Event) {
	frame, ok := events.ToFrame(evt)
	if !ok {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err), zap.String("kind", evt.Kind))
		return
	}
	h.Broadcast(data)
}

// ServeHTTP upgrades the request and keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Add(conn)
	h.logger.Info("live client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", h.Count()))

	done := make(chan struct{})
	go h.keepalive(conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Clients never send anything meaningful; reading only surfaces close and pong frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	h.Remove(conn)
	h.logger.Info("live client disconnected", zap.String("remote", r.RemoteAddr), zap.Int("clients", h.Count()))
}

func (h *Hub) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Add registers conn.
func (h *Hub) Add(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

// Remove unregisters and closes conn.
func (h *Hub) Remove(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast writes data to every client, dropping those that fail. Writes
// happen outside the registry lock so a slow client does not stall Add,
// Remove or Count.
func (h *Hub) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var failed []*websocket.Conn
	for _, conn := range h.snapshot() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("ws broadcast failed, dropping connection", zap.Error(err))
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.Remove(conn)
	}
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		delete(h.conns, conn)
	}
}
