package ws

import (
	"testing"

	"github.com/avolkov/pipewatch/internal/protocol"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		ID:   "test-" + string(rune('a'+hub.Count())),
		hub:  hub,
		send: make(chan []byte, 1),
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub)

	hub.Register(client)
	if hub.Count() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", hub.Count())
	}

	hub.Unregister(client)
	if hub.Count() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.Count())
	}

	// Unregistering twice must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_BroadcastDelivers(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub)
	hub.Register(client)

	hub.BroadcastAlert(&protocol.AlertNotification{
		Type:     protocol.MsgTypeAlert,
		SensorID: "T1_K_1",
		Message:  "test",
	})

	select {
	case payload := <-client.send:
		alert, err := protocol.DecodeAlertNotification(payload)
		if err != nil {
			t.Fatalf("Failed to decode broadcast payload: %v", err)
		}
		if alert.SensorID != "T1_K_1" {
			t.Errorf("Unexpected sensor id: %s", alert.SensorID)
		}
	default:
		t.Fatal("Expected a payload in the send buffer")
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub)
	healthy := newTestClient(hub)
	hub.Register(slow)
	hub.Register(healthy)

	// Fill the slow subscriber's buffer so the next broadcast cannot land.
	slow.send <- []byte("backlog")

	hub.BroadcastAlert(&protocol.AlertNotification{Type: protocol.MsgTypeAlert, SensorID: "T1_K_1"})

	if hub.Count() != 1 {
		t.Errorf("Expected slow subscriber to be dropped, count=%d", hub.Count())
	}
	if len(healthy.send) != 1 {
		t.Errorf("Healthy subscriber should still receive, got %d queued", len(healthy.send))
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	hub.Register(newTestClient(hub))
	hub.Register(newTestClient(hub))

	hub.CloseAll()
	if hub.Count() != 0 {
		t.Errorf("Expected empty registry, got %d", hub.Count())
	}
}
