package ws

import (
	"log"
	"sync"

	"github.com/avolkov/pipewatch/internal/protocol"
)

// Hub owns the registry of live alert subscribers. Broadcast is
// fire-and-forget: a subscriber whose send buffer is full or closed is
// dropped so one slow client never blocks ingestion.
type Hub struct {
	subscribers map[string]*Client // key: subscriber id
	mu          sync.RWMutex
}

// NewHub creates an empty subscriber registry.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Client),
	}
}

// Register adds a subscriber to the registry.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers[client.ID] = client
	log.Printf("Alert subscriber registered: %s (%d active)", client.ID, len(h.subscribers))
}

// Unregister removes a subscriber and closes its send channel. Safe to call
// more than once per subscriber.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subscribers[client.ID]; !exists {
		return
	}
	delete(h.subscribers, client.ID)
	close(client.send)
	log.Printf("Alert subscriber unregistered: %s (%d active)", client.ID, len(h.subscribers))
}

// BroadcastAlert pushes an alert payload to every live subscriber.
// Subscribers that cannot accept the message are deregistered; delivery
// failures never propagate to the caller.
func (h *Hub) BroadcastAlert(alert *protocol.AlertNotification) {
	payload, err := protocol.EncodeAlertNotification(alert)
	if err != nil {
		log.Printf("Failed to encode alert for broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.subscribers {
		select {
		case client.send <- payload:
		default:
			// Blocked or gone; drop it and move on.
			log.Printf("Alert subscriber %s not keeping up, removing", id)
			delete(h.subscribers, id)
			close(client.send)
		}
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// CloseAll deregisters every subscriber, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.subscribers {
		delete(h.subscribers, id)
		close(client.send)
	}
}
