package realtime

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func newTestClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan WSMessage, buffer)}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	c := newTestClient("c", 4)
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	payload := json.RawMessage(`{"level":0.9}`)
	hub.BroadcastAll("admin_receive_stress_alert", payload)

	for _, cl := range []*Client{a, b, c} {
		select {
		case msg := <-cl.send:
			if msg.Event != "admin_receive_stress_alert" {
				t.Errorf("client %s: event %q", cl.ID, msg.Event)
			}
			if string(msg.Data) != string(payload) {
				t.Errorf("client %s: payload %s", cl.ID, msg.Data)
			}
		default:
			t.Errorf("client %s received nothing", cl.ID)
		}
		// Exactly one message per client per broadcast.
		select {
		case msg := <-cl.send:
			t.Errorf("client %s received extra message %+v", cl.ID, msg)
		default:
		}
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	hub.Register(a)
	hub.Register(b)
	hub.Unregister(b)

	hub.BroadcastAll("x", map[string]int{"n": 1})

	if len(a.send) != 1 {
		t.Errorf("registered client messages: want 1, got %d", len(a.send))
	}
	if len(b.send) != 0 {
		t.Errorf("unregistered client messages: want 0, got %d", len(b.send))
	}
	if hub.ClientCount() != 1 {
		t.Errorf("client count: want 1, got %d", hub.ClientCount())
	}
}

func TestHub_SendToClientTargetsOne(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.SendToClient("a", "sms_sent_success", map[string]bool{"success": true})
	hub.SendToClient("ghost", "sms_sent_success", map[string]bool{"success": true})

	if len(a.send) != 1 {
		t.Errorf("target client messages: want 1, got %d", len(a.send))
	}
	if len(b.send) != 0 {
		t.Errorf("other client messages: want 0, got %d", len(b.send))
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop(), nil, nil)
	slow := newTestClient("slow", 1)
	hub.Register(slow)

	// Second broadcast must drop, not block.
	hub.BroadcastAll("x", map[string]int{"n": 1})
	hub.BroadcastAll("x", map[string]int{"n": 2})

	if len(slow.send) != 1 {
		t.Errorf("buffered messages: want 1, got %d", len(slow.send))
	}
}
