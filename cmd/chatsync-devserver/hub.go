package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// hubClient is one connected push client.
type hubClient struct {
	userID int64
	conn   *websocket.Conn
}

// hub tracks connected push clients and fans events out to all of them.
// A user can be connected more than once (several terminals).
type hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*hubClient]struct{})}
}

// register adds a client and reports whether this is the user's first
// connection (which should trigger an online presence broadcast).
func (h *hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	first := !h.connectedLocked(c.userID)
	h.clients[c] = struct{}{}
	return first
}

// unregister removes a client and reports whether the user has no
// connections left (offline presence broadcast).
func (h *hub) unregister(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	return !h.connectedLocked(c.userID)
}

func (h *hub) connectedLocked(userID int64) bool {
	for c := range h.clients {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// broadcast sends an event to every connected client. Dev-mode routing:
// no per-conversation membership filtering.
func (h *hub) broadcast(event map[string]any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "error", err)
		return
	}

	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.conn.Write(context.Background(), websocket.MessageText, data); err != nil {
			slog.Debug("Dropping client on write failure", "user_id", c.userID, "error", err)
		}
	}
}
