// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
	"github.com/schoolfin/syncd/internal/models"
)

// DefaultPath is the push endpoint path.
const DefaultPath = "/v1/ws/user-updates"

// ErrNotConnected is returned by Ping when no connection is open.
var ErrNotConnected = errors.New("push connection not open")

// Config configures a Client. Zero values take the defaults listed.
type Config struct {
	BaseURL              string        // API origin, http(s)
	Path                 string        // default /v1/ws/user-updates
	MaxReconnectAttempts int           // default 5
	ReconnectBaseDelay   time.Duration // default 1s
	ReconnectMaxDelay    time.Duration // default 10s
	PingInterval         time.Duration // default 30s
	HandshakeTimeout     time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	ReadLimit            int64         // default 1 MiB
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	return c
}

// Session is the authenticated session the connection runs under.
type Session interface {
	AccessToken() string
	IsAuthenticated() bool
	ForceLogout(reason string) bool
}

// Refresher is the shared refresh routine and the local identity it guards.
type Refresher interface {
	RefreshUser(ctx context.Context) error
	LocalUserID() string
}

// Publisher receives local broadcast events.
type Publisher interface {
	Publish(topic string, ev models.BroadcastEvent) error
}

// Client owns the one push connection of a session.
type Client struct {
	cfg       Config
	session   Session
	refresher Refresher
	publisher Publisher
	dialer    *websocket.Dialer

	state      atomic.Int32
	attempts   atomic.Int32
	suppressed atomic.Bool
	lastPing   atomic.Int64 // epoch ms of the last ping sent, 0 if none
	lastRTT    atomic.Int64 // nanoseconds

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	retrigger chan struct{}
	now       func() time.Time
}

// NewClient returns a client in the uninstantiated state. Call Run to
// connect. publisher may be nil, in which case broadcast messages are only
// logged.
func NewClient(cfg Config, session Session, refresher Refresher, publisher Publisher) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:       cfg,
		session:   session,
		refresher: refresher,
		publisher: publisher,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
		retrigger: make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Run maintains the connection until ctx is canceled. It only returns then.
func (c *Client) Run(ctx context.Context) error {
	logging.Info().Str("path", c.cfg.Path).Int("max_attempts", c.cfg.MaxReconnectAttempts).Msg("Realtime client starting")

	for {
		if ctx.Err() != nil {
			break
		}

		if c.suppressed.Load() || !c.session.IsAuthenticated() {
			logging.Debug().Msg("Realtime client idle until re-triggered")
			if !c.waitForRetrigger(ctx) {
				break
			}
			continue
		}

		target, ok := BuildURL(c.cfg.BaseURL, c.cfg.Path, c.session.AccessToken())
		if !ok {
			logging.Warn().Msg("No push endpoint available, waiting for re-trigger")
			if !c.waitForRetrigger(ctx) {
				break
			}
			continue
		}

		code := c.connectAndServe(ctx, target)
		if ctx.Err() != nil {
			break
		}

		attempts := int(c.attempts.Load())
		authenticated := !c.suppressed.Load() && c.session.IsAuthenticated()
		if !ShouldReconnect(code, attempts, c.cfg.MaxReconnectAttempts, authenticated) {
			logging.Warn().
				Int("close_code", code).
				Int("attempts", attempts).
				Bool("authenticated", authenticated).
				Msg("Push connection closed, not reconnecting")
			if !c.waitForRetrigger(ctx) {
				break
			}
			continue
		}

		delay := ReconnectDelay(attempts, c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay)
		c.attempts.Add(1)
		metrics.PushReconnectAttempts.Inc()
		logging.Info().
			Int("close_code", code).
			Int("attempt", attempts+1).
			Dur("delay", delay).
			Msg("Push connection lost, reconnecting")

		if !c.sleep(ctx, delay) {
			break
		}
	}

	c.setState(StateClosed)
	logging.Info().Msg("Realtime client stopped")
	return nil
}

// connectAndServe dials target and reads until the connection ends. It
// returns the close code that ended the connection.
func (c *Client) connectAndServe(ctx context.Context, target string) int {
	c.setState(StateConnecting)
	logging.Debug().Str("url", logging.RedactURL(target)).Msg("Connecting push endpoint")

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	conn, resp, err := c.dialer.DialContext(dialCtx, target, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}
	if err != nil {
		c.setState(StateClosed)
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			metrics.PushConnections.WithLabelValues("rejected").Inc()
			logging.Warn().Int("status", resp.StatusCode).Msg("Push handshake rejected credentials")
			return CloseAuthRejected
		}
		metrics.PushConnections.WithLabelValues("error").Inc()
		ev := logging.Warn().Err(err)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("Push handshake failed")
		return websocket.CloseAbnormalClosure
	}

	conn.SetReadLimit(c.cfg.ReadLimit)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	// Close may have run while the handshake was in flight.
	if c.suppressed.Load() {
		c.detach(conn)
		c.setState(StateClosed)
		return websocket.CloseNormalClosure
	}

	c.attempts.Store(0)
	c.drainRetrigger()
	c.setState(StateOpen)
	metrics.PushConnections.WithLabelValues("success").Inc()
	logging.Info().Msg("Push connection open")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pingLoop(conn, done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			c.writeClose(conn, websocket.CloseGoingAway, "client shutting down")
			if err := conn.Close(); err != nil {
				logging.Debug().Err(err).Msg("Failed to close push connection")
			}
		case <-done:
		}
	}()

	code := c.readLoop(ctx, conn)

	close(done)
	wg.Wait()
	c.detach(conn)
	c.setState(StateClosed)
	return code
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) int {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := closeCodeOf(err)
			switch {
			case ctx.Err() != nil, c.suppressed.Load():
				logging.Debug().Int("close_code", code).Msg("Push connection closed locally")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				logging.Info().Int("close_code", code).Msg("Push connection closed by server")
			default:
				logging.Warn().Err(err).Int("close_code", code).Msg("Push connection read failed")
			}
			return code
		}

		c.HandleMessage(ctx, data)

		if c.suppressed.Load() {
			return websocket.CloseNormalClosure
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.writePing(conn); err != nil {
				logging.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

// Ping sends a heartbeat immediately.
func (c *Client) Ping() error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil || c.State() != StateOpen {
		return ErrNotConnected
	}
	return c.writePing(conn)
}

func (c *Client) writePing(conn *websocket.Conn) error {
	now := c.now()
	payload, err := json.Marshal(models.NewPingMessage(now))
	if err != nil {
		return fmt.Errorf("encode ping: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(now.Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write ping: %w", err)
	}
	c.lastPing.Store(now.UnixMilli())
	return nil
}

func (c *Client) writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logging.Debug().Err(err).Msg("Failed to send close frame")
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close()
}

// Close closes the connection with a normal close frame and suppresses
// reconnects until Retrigger. It does not wait for Run, so it is safe to call
// from a logout hook running on the read loop.
func (c *Client) Close() error {
	c.suppressed.Store(true)

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}

	c.setState(StateClosing)
	c.writeClose(conn, websocket.CloseNormalClosure, "client closing")
	if err := conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close push connection")
	}
	logging.Info().Msg("Push connection closed by client")
	return nil
}

// Retrigger leaves a terminal state: the counter resets, suppression is
// lifted and Run attempts a new connection. Call it after re-authentication.
func (c *Client) Retrigger() {
	c.attempts.Store(0)
	c.suppressed.Store(false)
	select {
	case c.retrigger <- struct{}{}:
	default:
	}
}

func (c *Client) drainRetrigger() {
	select {
	case <-c.retrigger:
	default:
	}
}

func (c *Client) waitForRetrigger(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.retrigger:
		return true
	}
}

// sleep waits d. A re-trigger cuts the wait short.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.retrigger:
		return true
	case <-timer.C:
		return true
	}
}

func (c *Client) setState(s ConnectionState) {
	prev := ConnectionState(c.state.Swap(int32(s)))
	if prev == s {
		return
	}
	metrics.RecordPushState(int(s))
	logging.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Push connection state changed")
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// ConnectionStatus returns the display name of the current state.
func (c *Client) ConnectionStatus() string {
	return c.State().Status()
}

// ReconnectAttempts returns the current value of the reconnect counter.
func (c *Client) ReconnectAttempts() int {
	return int(c.attempts.Load())
}

// LastRTT returns the most recent ping round trip, or zero.
func (c *Client) LastRTT() time.Duration {
	return time.Duration(c.lastRTT.Load())
}

// String implements fmt.Stringer for the supervisor.
func (c *Client) String() string {
	return "realtime-client"
}
