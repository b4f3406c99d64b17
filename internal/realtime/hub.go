package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"task-tracker-api/internal/events"
)

// Client represents a single websocket client connection.
// The network conn itself is managed by the websocket handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub keeps the connected clients grouped by the status they follow and
// pushes task events to them. Clients registered under "" follow every task.
type Hub struct {
	mu       sync.RWMutex
	byStatus map[string]map[Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byStatus: make(map[string]map[Client]struct{}),
	}
}

// Register adds a client under a status filter.
func (h *Hub) Register(status string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byStatus[status]; !ok {
		h.byStatus[status] = make(map[Client]struct{})
	}
	h.byStatus[status][client] = struct{}{}
}

// Unregister removes a client; empty filters are dropped.
func (h *Hub) Unregister(status string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.byStatus[status]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.byStatus, status)
		}
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.byStatus {
		n += len(clients)
	}
	return n
}

// Broadcast sends a message to the clients following status and to the
// clients following everything. It returns how many sends succeeded.
func (h *Hub) Broadcast(status string, message []byte) int {
	return h.broadcast(message, status)
}

// recipients snapshots the clients following any of statuses plus the
// unfiltered ones. Each client appears once.
func (h *Hub) recipients(statuses ...string) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[Client]struct{})
	out := make([]Client, 0, len(h.byStatus[""]))
	add := func(status string) {
		for c := range h.byStatus[status] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	add("")
	for _, status := range statuses {
		if status != "" {
			add(status)
		}
	}
	return out
}

// broadcast sends outside the lock.
func (h *Hub) broadcast(message []byte, statuses ...string) int {
	delivered := 0
	for _, c := range h.recipients(statuses...) {
		// a failed write is cleaned up by the handler's read loop
		if c.Send(message) {
			delivered++
		}
	}
	return delivered
}

// Publish implements events.Publisher. A status change reaches the
// followers of both the old and the new status.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	message, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	h.broadcast(message, evt.Status, evt.PreviousStatus)
	return nil
}

var _ events.Publisher = (*Hub)(nil)
