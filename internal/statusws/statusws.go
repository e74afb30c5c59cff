// Package statusws pushes daemon status snapshots to WebSocket subscribers.
// Observers (dashboards, experiment UIs) connect to ws://<addr>/status and
// receive the latest StatusSnapshot as JSON whenever the daemon publishes one.
package statusws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camcord/camcord/internal/diaglog"
	"github.com/camcord/camcord/internal/ipc"
)

const writeTimeout = 5 * time.Second

// Broadcaster fans status snapshots out to connected WebSocket clients.
type Broadcaster struct {
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    []byte // most recent snapshot, replayed to new subscribers

	logger *diaglog.Logger
}

// New creates a Broadcaster. The logger may be nil.
func New(logger *diaglog.Logger) *Broadcaster {
	if logger == nil {
		logger = diaglog.NewNoOp()
	}
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Status is read-only telemetry, any origin may subscribe
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
}

// Start begins serving ws://<addr>/status in a background goroutine.
// Errors from the listener are reported on the returned channel.
func (b *Broadcaster) Start(addr string) <-chan error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", b.handleSubscribe)

	b.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Handler returns the subscribe endpoint for mounting on an external server.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return b.handleSubscribe
}

func (b *Broadcaster) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Log(diaglog.LogEntry{
			Component: diaglog.ComponentStatusWS,
			Event:     diaglog.EventWSUpgradeFailed,
			Reason:    err.Error(),
		})
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	replay := b.last
	b.mu.Unlock()

	// New subscribers see the current state immediately
	if replay != nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, replay); err != nil {
			b.drop(conn)
			return
		}
	}

	// Drain reads so close frames and pings are processed; subscribers
	// never send application data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.drop(conn)
				return
			}
		}
	}()
}

// Publish sends the snapshot to every connected client. Slow or dead
// clients are dropped rather than blocking the daemon loop.
func (b *Broadcaster) Publish(snap *ipc.StatusSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.last = data
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			b.drop(c)
		}
	}
}

// ClientCount reports the number of active subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.mu.Lock()
	_, ok := b.clients[conn]
	delete(b.clients, conn)
	b.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// Shutdown closes all subscriber connections and stops the listener.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	for c := range b.clients {
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
			time.Now().Add(time.Second))
		c.Close()
	}
	b.clients = make(map[*websocket.Conn]struct{})
	b.mu.Unlock()

	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}
