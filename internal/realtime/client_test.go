// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

// ============================================================================
// Test doubles
// ============================================================================

type fakeSession struct {
	token    string
	authed   atomic.Bool
	logouts  atomic.Int32
	reason   atomic.Value
	onLogout func()
}

func newFakeSession(token string) *fakeSession {
	s := &fakeSession{token: token}
	s.authed.Store(true)
	return s
}

func (s *fakeSession) AccessToken() string {
	if !s.authed.Load() {
		return ""
	}
	return s.token
}

func (s *fakeSession) IsAuthenticated() bool { return s.authed.Load() }

func (s *fakeSession) ForceLogout(reason string) bool {
	if !s.authed.CompareAndSwap(true, false) {
		return false
	}
	s.logouts.Add(1)
	s.reason.Store(reason)
	if s.onLogout != nil {
		s.onLogout()
	}
	return true
}

type fakeRefresher struct {
	localID   string
	refreshes atomic.Int32
	err       error
	panicMsg  string
}

func (r *fakeRefresher) RefreshUser(context.Context) error {
	r.refreshes.Add(1)
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.err
}

func (r *fakeRefresher) LocalUserID() string { return r.localID }

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []models.BroadcastEvent
}

func (p *recordingPublisher) Publish(topic string, ev models.BroadcastEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) snapshot() ([]string, []models.BroadcastEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([]models.BroadcastEvent(nil), p.events...)
}

// mockPushServer simulates the backend push endpoint.
type mockPushServer struct {
	server     *httptest.Server
	upgrader   websocket.Upgrader
	handshakes atomic.Int32
	rejectWith atomic.Int32
	tokens     chan string
	onConn     func(conn *websocket.Conn)
}

func newMockPushServer(t *testing.T, onConn func(conn *websocket.Conn)) *mockPushServer {
	t.Helper()
	m := &mockPushServer{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		tokens:   make(chan string, 16),
		onConn:   onConn,
	}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.handshakes.Add(1)
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		select {
		case m.tokens <- r.URL.Query().Get("token"):
		default:
		}
		if status := int(m.rejectWith.Load()); status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		conn, err := m.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if m.onConn != nil {
			m.onConn(conn)
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

// holdOpen answers pings until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == models.MessageTypePing {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)); err != nil {
				return
			}
		}
	}
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   time.Millisecond,
		ReconnectMaxDelay:    5 * time.Millisecond,
		PingInterval:         time.Hour,
		HandshakeTimeout:     2 * time.Second,
		WriteTimeout:         time.Second,
	}
}

func startClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// send writes a frame from the server side. Errors are ignored: the client
// may already have closed the connection.
func send(conn *websocket.Conn, raw string) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

// ============================================================================
// Connection lifecycle
// ============================================================================

func TestClient_ConnectsAndResetsCounter(t *testing.T) {
	mock := newMockPushServer(t, holdOpen)
	sess := newFakeSession("tok-123")
	c := NewClient(testConfig(mock.server.URL), sess, &fakeRefresher{localID: "1"}, nil)

	if c.State() != StateUninstantiated {
		t.Fatalf("initial state = %v, want uninstantiated", c.State())
	}

	c.attempts.Store(3)
	startClient(t, c)

	waitFor(t, "open connection", c.IsConnected)
	if got := <-mock.tokens; got != "tok-123" {
		t.Errorf("token query parameter = %q", got)
	}
	if c.ReconnectAttempts() != 0 {
		t.Errorf("ReconnectAttempts() = %d, want 0 after open", c.ReconnectAttempts())
	}
	if c.ConnectionStatus() != "Open" {
		t.Errorf("ConnectionStatus() = %q", c.ConnectionStatus())
	}
	waitFor(t, "state gauge", func() bool {
		return testutil.ToFloat64(metrics.PushConnectionState) == float64(StateOpen)
	})
}

func TestClient_ReconnectCeiling(t *testing.T) {
	mock := newMockPushServer(t, nil)
	mock.rejectWith.Store(http.StatusServiceUnavailable)

	c := NewClient(testConfig(mock.server.URL), newFakeSession("tok"), &fakeRefresher{localID: "1"}, nil)
	startClient(t, c)

	waitFor(t, "six handshakes", func() bool { return mock.handshakes.Load() >= 6 })
	time.Sleep(100 * time.Millisecond)

	if got := mock.handshakes.Load(); got != 6 {
		t.Errorf("handshakes = %d, want 1 initial + 5 reconnects", got)
	}
	if c.ReconnectAttempts() != 5 {
		t.Errorf("ReconnectAttempts() = %d, want 5", c.ReconnectAttempts())
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
}

func TestClient_AuthRejectedCloseCode(t *testing.T) {
	mock := newMockPushServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(CloseAuthRejected, "token rejected")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	})

	c := NewClient(testConfig(mock.server.URL), newFakeSession("tok"), &fakeRefresher{localID: "1"}, nil)
	startClient(t, c)

	waitFor(t, "first handshake", func() bool { return mock.handshakes.Load() >= 1 })
	waitFor(t, "closed state", func() bool { return c.State() == StateClosed })
	time.Sleep(100 * time.Millisecond)

	if got := mock.handshakes.Load(); got != 1 {
		t.Errorf("handshakes = %d, want 1 (no retry after 4001)", got)
	}
}

func TestClient_HandshakeUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mock := newMockPushServer(t, nil)
			mock.rejectWith.Store(int32(status))

			c := NewClient(testConfig(mock.server.URL), newFakeSession("tok"), &fakeRefresher{localID: "1"}, nil)
			startClient(t, c)

			waitFor(t, "first handshake", func() bool { return mock.handshakes.Load() >= 1 })
			time.Sleep(100 * time.Millisecond)
			if got := mock.handshakes.Load(); got != 1 {
				t.Errorf("handshakes = %d, want 1", got)
			}
		})
	}
}

func TestClient_UnauthenticatedNeverConnects(t *testing.T) {
	mock := newMockPushServer(t, holdOpen)
	sess := newFakeSession("tok")
	sess.authed.Store(false)

	c := NewClient(testConfig(mock.server.URL), sess, &fakeRefresher{localID: "1"}, nil)
	startClient(t, c)

	time.Sleep(100 * time.Millisecond)
	if mock.handshakes.Load() != 0 {
		t.Error("no connection may be attempted without a session")
	}
	if c.State() != StateUninstantiated {
		t.Errorf("State() = %v, want uninstantiated", c.State())
	}

	sess.authed.Store(true)
	c.Retrigger()
	waitFor(t, "open after re-trigger", c.IsConnected)
}

func TestClient_CloseAndRetrigger(t *testing.T) {
	closeCodes := make(chan int, 4)
	mock := newMockPushServer(t, func(conn *websocket.Conn) {
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			closeCodes <- ce.Code
		}
	})

	c := NewClient(testConfig(mock.server.URL), newFakeSession("tok"), &fakeRefresher{localID: "1"}, nil)
	startClient(t, c)
	waitFor(t, "open connection", c.IsConnected)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case code := <-closeCodes:
		if code != websocket.CloseNormalClosure {
			t.Errorf("server saw close code %d, want 1000", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a close frame")
	}

	waitFor(t, "closed state", func() bool { return c.State() == StateClosed })
	time.Sleep(50 * time.Millisecond)
	if mock.handshakes.Load() != 1 {
		t.Errorf("handshakes = %d, Close must suppress reconnect", mock.handshakes.Load())
	}

	c.Retrigger()
	waitFor(t, "second connection", func() bool { return mock.handshakes.Load() == 2 })
	waitFor(t, "open after re-trigger", c.IsConnected)
}

// ============================================================================
// Message handling over a live connection
// ============================================================================

func TestClient_DeactivationLogsOutOnce(t *testing.T) {
	mock := newMockPushServer(t, func(conn *websocket.Conn) {
		send(conn, `{"type":"user_update","update_type":"user_deactivated","user_id":"7","timestamp":1}`)
		send(conn, `{"type":"user_update","update_type":"user_deactivated","user_id":"7","timestamp":2}`)
		send(conn, `{"type":"user_update","update_type":"profile_updated","user_id":"7","timestamp":3}`)
		holdOpen(conn)
	})

	sess := newFakeSession("tok")
	refresher := &fakeRefresher{localID: "7"}
	c := NewClient(testConfig(mock.server.URL), sess, refresher, nil)
	sess.onLogout = func() { _ = c.Close() }
	startClient(t, c)

	waitFor(t, "logout", func() bool { return sess.logouts.Load() > 0 })
	waitFor(t, "closed state", func() bool { return c.State() == StateClosed })
	time.Sleep(100 * time.Millisecond)

	if sess.logouts.Load() != 1 {
		t.Errorf("logouts = %d, want exactly 1", sess.logouts.Load())
	}
	if sess.reason.Load() != "user_deactivated" {
		t.Errorf("logout reason = %v", sess.reason.Load())
	}
	if refresher.refreshes.Load() != 0 {
		t.Error("messages after logout must not be processed")
	}
	if mock.handshakes.Load() != 1 {
		t.Errorf("handshakes = %d, want no reconnect after logout", mock.handshakes.Load())
	}
}

func TestClient_MalformedFrameKeepsConnection(t *testing.T) {
	mock := newMockPushServer(t, func(conn *websocket.Conn) {
		send(conn, `not json at all`)
		send(conn, `{"no_type":true}`)
		send(conn, `{"type":"user_update","update_type":"profile_updated","user_id":"7"}`)
		holdOpen(conn)
	})

	refresher := &fakeRefresher{localID: "7"}
	c := NewClient(testConfig(mock.server.URL), newFakeSession("tok"), refresher, nil)
	startClient(t, c)

	waitFor(t, "refresh after malformed frames", func() bool { return refresher.refreshes.Load() == 1 })
	if !c.IsConnected() {
		t.Error("malformed frames must not close the connection")
	}
	if mock.handshakes.Load() != 1 {
		t.Errorf("handshakes = %d, want 1", mock.handshakes.Load())
	}
}

func TestClient_PingPong(t *testing.T) {
	pings := make(chan models.PingMessage, 4)
	mock := newMockPushServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ping models.PingMessage
			if err := json.Unmarshal(data, &ping); err != nil || ping.Type != models.MessageTypePing {
				continue
			}
			select {
			case pings <- ping:
			default:
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)); err != nil {
				return
			}
		}
	})

	before := testutil.ToFloat64(metrics.PushMessagesReceived.WithLabelValues(models.MessageTypePong))

	cfg := testConfig(mock.server.URL)
	cfg.PingInterval = 20 * time.Millisecond
	c := NewClient(cfg, newFakeSession("tok"), &fakeRefresher{localID: "1"}, nil)
	startClient(t, c)

	select {
	case ping := <-pings:
		if ping.Timestamp <= 0 {
			t.Errorf("ping timestamp = %d", ping.Timestamp)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no ping received")
	}

	waitFor(t, "pong handled", func() bool {
		return testutil.ToFloat64(metrics.PushMessagesReceived.WithLabelValues(models.MessageTypePong)) > before
	})
	if c.LastRTT() < 0 {
		t.Errorf("LastRTT() = %v, want non-negative", c.LastRTT())
	}
	if c.lastPing.Load() == 0 {
		t.Error("last ping time not recorded")
	}
}

func TestClient_PingNotConnected(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://localhost"}, newFakeSession("tok"), &fakeRefresher{}, nil)
	if err := c.Ping(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Ping() = %v, want ErrNotConnected", err)
	}
}
