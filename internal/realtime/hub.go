package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// AlertPublisher publishes an event to other server instances.
type AlertPublisher interface {
	PublishAlert(origin, event string, payload []byte) error
}

// AlertSubscriber subscribes to alert events published by other instances.
// The handler receives the publishing instance's origin ID so local echoes can
// be filtered out.
type AlertSubscriber interface {
	SubscribeAlerts(handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains the set of connected clients and broadcasts named events to
// all of them. The registry is mutated only by connect/disconnect lifecycle
// events and read at broadcast time; the RWMutex keeps each accepted event
// producing exactly one local broadcast.
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	logger     *zap.Logger
	pub        AlertPublisher
	cancelSub  func()
	instanceID string
}

// NewHub creates the WebSocket hub. pub and sub may be nil for standalone
// deployments; with both set, broadcasts reach clients on every instance.
func NewHub(logger *zap.Logger, pub AlertPublisher, sub AlertSubscriber) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		logger:     logger,
		pub:        pub,
		instanceID: uuid.New().String(),
	}
	if sub != nil {
		cancel, err := sub.SubscribeAlerts(func(origin, event string, payload []byte) {
			if origin == h.instanceID {
				return
			}
			h.broadcastLocal(event, json.RawMessage(payload))
		})
		if err != nil {
			logger.Warn("alert subscription failed, running standalone", zap.Error(err))
		} else {
			h.cancelSub = cancel
		}
	}
	return h
}

// Register adds a connected client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.Int("connected", count))
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client disconnected",
		zap.String("client_id", c.ID),
		zap.Int("connected", count))
}

// BroadcastAll sends an event to every connected client, including the sender
// of whatever triggered it, and forwards it to other instances when a
// publisher is configured.
func (h *Hub) BroadcastAll(event string, payload interface{}) {
	data := marshalPayload(payload)
	h.broadcastLocal(event, data)
	if h.pub != nil {
		if err := h.pub.PublishAlert(h.instanceID, event, data); err != nil {
			h.logger.Warn("cross-instance publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}

func (h *Hub) broadcastLocal(event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// SendToClient sends an event to a single connected client.
func (h *Hub) SendToClient(clientID, event string, payload interface{}) {
	msg := WSMessage{Event: event, Data: marshalPayload(payload)}
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ClientCount returns the number of connected clients on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the cross-instance subscription.
func (h *Hub) Close() {
	if h.cancelSub != nil {
		h.cancelSub()
	}
}

func marshalPayload(payload interface{}) json.RawMessage {
	switch v := payload.(type) {
	case []byte:
		return v
	case json.RawMessage:
		return v
	default:
		data, _ := json.Marshal(payload)
		return data
	}
}
