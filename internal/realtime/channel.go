package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Emit while the channel is not connected.
// Outbound events are dropped in that window; there is no send queue.
var ErrNotConnected = errors.New("channel not connected")

// ConnectionState is the lifecycle state of a Channel. It only changes
// through connect/disconnect transport events, never through business logic.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultReconnectMin     = 2 * time.Second
	defaultReconnectMax     = 10 * time.Second
	channelWriteWait        = 10 * time.Second
)

// Handler is invoked once per received event of the registered name, in
// receipt order. Handlers run on the channel's dispatch goroutine and must
// not block.
type Handler func(data json.RawMessage)

// ChannelConfig configures a client channel.
type ChannelConfig struct {
	URL              string      // ws:// or wss:// endpoint, including token query
	Header           http.Header // optional extra handshake headers
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration // initial retry delay, doubled per failure
	ReconnectMax     time.Duration // retry delay ceiling; retries are unbounded
	OnStateChange    func(ConnectionState)
}

// Channel is the client side of the event stream: one long-lived logical
// connection that transparently reconnects on failure. Handler registrations
// and any state accumulated by consumers survive reconnects; the only visible
// effect of a transport failure is the state changing and a gap in inbound
// events.
type Channel struct {
	cfg    ChannelConfig
	dialer *websocket.Dialer
	logger *zap.Logger

	state atomic.Int32
	// running guards the dial loop: at most one run goroutine exists, even
	// when a state callback calls Connect mid-reconnect.
	running atomic.Bool

	mu       sync.Mutex // guards handlers and conn
	handlers map[string][]Handler
	conn     *websocket.Conn

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChannel creates a channel. It does not connect; call Connect.
func NewChannel(cfg ChannelConfig, logger *zap.Logger) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger:   logger,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// On registers a handler for a named event. Multiple handlers for the same
// name are all invoked, in registration order.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Connect begins the connection attempt. Idempotent: while the dial loop is
// alive a connection attempt is already in progress, so repeat calls are
// no-ops even if the observed state is momentarily Disconnected between
// retries.
func (c *Channel) Connect() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.setState(StateConnecting)
	go c.run()
}

// Emit sends a named event, best-effort. While the channel is not connected
// the event is dropped and ErrNotConnected returned; transport write failures
// surface the same way on the next read cycle, never as a panic.
func (c *Channel) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || c.State() != StateConnected {
		c.logger.Debug("emit dropped while disconnected", zap.String("event", event))
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
	return conn.WriteJSON(WSMessage{Event: event, Data: data})
}

// Disconnect releases the channel. No further reconnect attempts are made.
func (c *Channel) Disconnect() {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) run() {
	defer func() {
		c.setState(StateDisconnected)
		c.running.Store(false)
	}()

	delay := c.cfg.ReconnectMin
	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, resp, err := c.dialer.DialContext(c.ctx, c.cfg.URL, c.cfg.Header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("channel dial failed",
				zap.Error(err),
				zap.Duration("retry_in", delay))
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.ReconnectMax {
				delay = c.cfg.ReconnectMax
			}
			continue
		}

		delay = c.cfg.ReconnectMin
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)
		c.logger.Info("channel connected", zap.String("url", c.cfg.URL))

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(StateDisconnected)

		if c.ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)
	}
}

// readLoop dispatches inbound events in receipt order until the connection
// fails or the channel is released.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("channel read failed", zap.Error(err))
			}
			return
		}

		c.mu.Lock()
		hs := make([]Handler, len(c.handlers[msg.Event]))
		copy(hs, c.handlers[msg.Event])
		c.mu.Unlock()
		for _, h := range hs {
			h(msg.Data)
		}
	}
}

func (c *Channel) setState(s ConnectionState) {
	if c.state.Swap(int32(s)) != int32(s) {
		c.notify(s)
	}
}

func (c *Channel) notify(s ConnectionState) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}
