// Package livetail broadcasts live CloudEvent verdicts to connected
// WebSocket clients, adapted from the teacher's
// internal/websocket/dag_streamer.go: the same
// register/unregister/broadcast hub pattern run from a single Run
// goroutine, re-targeted from DAG visualization events onto
// notify.CloudEvent (spec.md §6's live tail side-channel).
package livetail

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ocx/agentbus/internal/notify"
)

// Streamer fans out CloudEvents to every connected WebSocket client.
type Streamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan *notify.CloudEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// New creates a Streamer. Call Run in its own goroutine before serving
// HandleWebSocket, and Bridge to feed it events from a notify event bus.
func New(logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan *notify.CloudEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run drives the hub until ctx-independent shutdown (the process exit
// tears the listener down; there is no per-bus lifetime to bound here).
func (s *Streamer) Run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.clients[conn] = true
			n := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("tail client connected", "total", n)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				_ = conn.Close()
			}
			n := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("tail client disconnected", "total", n)

		case event := <-s.broadcast:
			s.mu.RLock()
			for conn := range s.clients {
				if err := conn.WriteJSON(event); err != nil {
					s.logger.Debug("tail write error", "error", err)
					_ = conn.Close()
					delete(s.clients, conn)
				}
			}
			s.mu.RUnlock()
		}
	}
}

// Bridge pumps every event off ch onto the broadcast hub until ch is
// closed. ch is typically a notify.Bus subscription.
func (s *Streamer) Bridge(ch <-chan *notify.CloudEvent) {
	for event := range ch {
		s.broadcast <- event
	}
}

// HandleWebSocket upgrades the request and registers the connection
// with the hub, reading (and discarding) incoming frames only to
// detect client disconnects.
func (s *Streamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("tail upgrade failed", "error", err)
		return
	}
	s.register <- conn

	go func() {
		defer func() { s.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Stats reports the current hub occupancy, served by agentbusd at
// /tail/stats.
func (s *Streamer) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"connected_clients": len(s.clients),
		"broadcast_queue":   len(s.broadcast),
	}
}
