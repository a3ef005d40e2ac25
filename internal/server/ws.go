package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/devika/posecam/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StateSocketHandler pushes session state snapshots to WebSocket clients.
// Pushes ride on the session's change notifications, so clients only see
// frames where a displayed value actually changed.
type StateSocketHandler struct {
	session *session.Session
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewStateSocketHandler creates a handler subscribed to the session.
func NewStateSocketHandler(s *session.Session) *StateSocketHandler {
	h := &StateSocketHandler{
		session: s,
		clients: make(map[*websocket.Conn]bool),
	}
	s.Subscribe(h.push)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StateSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// New clients get the current state right away.
	if msg, err := json.Marshal(renderState(h.session.Snapshot())); err == nil {
		conn.WriteMessage(websocket.TextMessage, msg)
	}

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// push fans a snapshot out to all connected clients.
func (h *StateSocketHandler) push(snap session.Snapshot) {
	msg, err := json.Marshal(renderState(snap))
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.WriteMessage(websocket.TextMessage, msg)
	}
}
