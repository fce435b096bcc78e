package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// channelTestServer upgrades incoming connections and keeps them around so
// tests can write to or drop them.
type channelTestServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newChannelTestServer(t *testing.T) *channelTestServer {
	t.Helper()
	s := &channelTestServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *channelTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *channelTestServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *channelTestServer) conn(i int) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[i]
}

// stateRecorder collects connection state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(s ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnectionState, len(r.states))
	copy(out, r.states)
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestChannel(url string, rec *stateRecorder) *Channel {
	cfg := ChannelConfig{
		URL:          url,
		ReconnectMin: 20 * time.Millisecond,
		ReconnectMax: 100 * time.Millisecond,
	}
	if rec != nil {
		cfg.OnStateChange = rec.record
	}
	return NewChannel(cfg, zap.NewNop())
}

func TestChannel_ReconnectSurvivesTransportDrop(t *testing.T) {
	t.Parallel()

	server := newChannelTestServer(t)
	rec := &stateRecorder{}
	ch := newTestChannel(server.wsURL(), rec)
	defer ch.Disconnect()

	var mu sync.Mutex
	var received []float64
	ch.On("stress_update", func(data json.RawMessage) {
		var p struct {
			Level float64 `json:"level"`
		}
		if json.Unmarshal(data, &p) == nil {
			mu.Lock()
			received = append(received, p.Level)
			mu.Unlock()
		}
	})

	ch.Connect()
	if !waitUntil(t, 2*time.Second, func() bool { return ch.State() == StateConnected }) {
		t.Fatal("never connected")
	}

	// Deliver an event on the first connection.
	writeEvent(t, server.conn(0), "stress_update", `{"level":0.3}`)
	if !waitUntil(t, 2*time.Second, func() bool { mu.Lock(); defer mu.Unlock(); return len(received) == 1 }) {
		t.Fatal("handler never invoked on first connection")
	}

	// Drop the transport mid-stream; the channel must redial on its own.
	_ = server.conn(0).Close()
	if !waitUntil(t, 3*time.Second, func() bool {
		return server.connCount() >= 2 && ch.State() == StateConnected
	}) {
		t.Fatalf("never reconnected: conns=%d state=%v", server.connCount(), ch.State())
	}

	// Handler registrations survive the reconnect.
	writeEvent(t, server.conn(1), "stress_update", `{"level":0.7}`)
	if !waitUntil(t, 2*time.Second, func() bool { mu.Lock(); defer mu.Unlock(); return len(received) == 2 }) {
		t.Fatal("handler lost across reconnect")
	}
	mu.Lock()
	if received[0] != 0.3 || received[1] != 0.7 {
		t.Errorf("events out of order or corrupted: %v", received)
	}
	mu.Unlock()

	// Transitions must include the full drop/recover cycle.
	assertSubsequence(t, rec.snapshot(), []ConnectionState{
		StateConnecting, StateConnected, StateDisconnected, StateConnecting, StateConnected,
	})
}

func TestChannel_EmitDroppedWhileDisconnected(t *testing.T) {
	t.Parallel()

	ch := newTestChannel("ws://127.0.0.1:1/ws", nil)
	if err := ch.Emit("report_high_stress", map[string]float64{"level": 0.9}); err != ErrNotConnected {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestChannel_EmitReachesServer(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	got := make(chan WSMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err == nil {
			got <- msg
		}
	}))
	defer srv.Close()

	ch := newTestChannel("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	defer ch.Disconnect()
	ch.Connect()
	if !waitUntil(t, 2*time.Second, func() bool { return ch.State() == StateConnected }) {
		t.Fatal("never connected")
	}

	if err := ch.Emit("report_high_stress", map[string]float64{"level": 0.9}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case msg := <-got:
		if msg.Event != "report_high_stress" {
			t.Errorf("event: got %q", msg.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the event")
	}
}

func TestChannel_MultipleHandlersInvokedInOrder(t *testing.T) {
	t.Parallel()

	server := newChannelTestServer(t)
	ch := newTestChannel(server.wsURL(), nil)
	defer ch.Disconnect()

	var mu sync.Mutex
	var order []string
	ch.On("stress_update", func(json.RawMessage) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	ch.On("stress_update", func(json.RawMessage) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	ch.Connect()
	if !waitUntil(t, 2*time.Second, func() bool { return ch.State() == StateConnected }) {
		t.Fatal("never connected")
	}
	writeEvent(t, server.conn(0), "stress_update", `{"level":0.1}`)

	if !waitUntil(t, 2*time.Second, func() bool { mu.Lock(); defer mu.Unlock(); return len(order) == 2 }) {
		t.Fatalf("handlers invoked %d times, want 2", len(order))
	}
	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order: %v", order)
	}
}

func TestChannel_ConnectFromStateCallbackSpawnsNoSecondLoop(t *testing.T) {
	t.Parallel()

	server := newChannelTestServer(t)

	// A consumer reacting to the drop notification by calling Connect is
	// legal; it must not start a second dial loop alongside the automatic
	// reconnect.
	var ch *Channel
	cfg := ChannelConfig{
		URL:          server.wsURL(),
		ReconnectMin: 20 * time.Millisecond,
		ReconnectMax: 100 * time.Millisecond,
		OnStateChange: func(s ConnectionState) {
			if s == StateDisconnected {
				ch.Connect()
			}
		},
	}
	ch = NewChannel(cfg, zap.NewNop())
	defer ch.Disconnect()

	ch.Connect()
	if !waitUntil(t, 2*time.Second, func() bool { return ch.State() == StateConnected }) {
		t.Fatal("never connected")
	}

	_ = server.conn(0).Close()
	if !waitUntil(t, 3*time.Second, func() bool {
		return server.connCount() >= 2 && ch.State() == StateConnected
	}) {
		t.Fatalf("never reconnected: conns=%d state=%v", server.connCount(), ch.State())
	}

	// A duplicate loop would show up as a third connection shortly after.
	time.Sleep(200 * time.Millisecond)
	if got := server.connCount(); got != 2 {
		t.Fatalf("connections after one drop: want 2, got %d (duplicate dial loops)", got)
	}
}

func TestChannel_ConnectIdempotent(t *testing.T) {
	t.Parallel()

	server := newChannelTestServer(t)
	ch := newTestChannel(server.wsURL(), nil)
	defer ch.Disconnect()

	ch.Connect()
	ch.Connect()
	ch.Connect()

	if !waitUntil(t, 2*time.Second, func() bool { return ch.State() == StateConnected }) {
		t.Fatal("never connected")
	}
	// Give a second dial time to show up if one were coming.
	time.Sleep(100 * time.Millisecond)
	if got := server.connCount(); got != 1 {
		t.Errorf("connections opened: want 1, got %d", got)
	}
}

func writeEvent(t *testing.T, conn *websocket.Conn, event, data string) {
	t.Helper()
	if err := conn.WriteJSON(WSMessage{Event: event, Data: json.RawMessage(data)}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// assertSubsequence checks that want appears within got in order.
func assertSubsequence(t *testing.T, got, want []ConnectionState) {
	t.Helper()
	i := 0
	for _, s := range got {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Errorf("state transitions %v missing subsequence %v", got, want)
	}
}
