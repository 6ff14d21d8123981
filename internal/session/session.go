// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

// Package session tracks the authenticated session that the sync layer runs
// under: the bearer token, the local identity and a generation counter that
// lets in-flight work detect that the session changed underneath it.
//
// A forced logout happens at most once per login. Logout hooks run after the
// transition, outside the session lock, so a hook may call back into the
// session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
)

// ErrNoToken is returned when no access token is available.
var ErrNoToken = errors.New("no access token available")

// Logout reasons.
const (
	ReasonUserDeactivated = "user_deactivated"
	ReasonTokenExpired    = "token_expired"
	ReasonUnauthorized    = "unauthorized"
)

// ReasonLogin is passed to login hooks.
const ReasonLogin = "login"

// Hook is called on session transitions with the identity the transition
// applies to. For a logout that is the identity held before the logout.
type Hook func(reason, userID string)

// Config seeds a Session.
type Config struct {
	// AccessToken is a fixed token. Ignored when TokenSource is set.
	AccessToken string
	// TokenSource is consulted on every AccessToken call.
	TokenSource func() (string, error)
	// UserID is the local identity. Defaults to the token subject.
	UserID string
}

// Session is safe for concurrent use.
type Session struct {
	mu            sync.RWMutex
	token         string
	tokenSource   func() (string, error)
	userID        string
	authenticated bool
	generation    uint64
	logoutHooks   []Hook
	loginHooks    []Hook

	now func() time.Time
}

// New returns an authenticated session for cfg. The session starts
// unauthenticated when no token can be obtained.
func New(cfg Config) *Session {
	s := &Session{
		token:       cfg.AccessToken,
		tokenSource: cfg.TokenSource,
		userID:      cfg.UserID,
		generation:  1,
		now:         time.Now,
	}
	s.authenticated = s.currentToken() != ""
	return s
}

func (s *Session) currentToken() string {
	if s.tokenSource == nil {
		return s.token
	}
	tok, err := s.tokenSource()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read access token")
		return ""
	}
	return tok
}

// AccessToken returns the bearer token, or "" when the session is not
// authenticated or the token has expired. An expired fixed token ends the
// session; a TokenSource may still rotate in a fresh one, so its expired
// tokens are only withheld.
func (s *Session) AccessToken() string {
	tok, expiredFixed := s.usableToken()
	if expiredFixed {
		s.ForceLogout(ReasonTokenExpired)
		return ""
	}
	return tok
}

func (s *Session) usableToken() (tok string, expiredFixed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return "", false
	}
	tok = s.currentToken()
	if tok == "" {
		return "", false
	}
	if info, err := InspectToken(tok); err == nil && info.Expired(s.now()) {
		return "", s.tokenSource == nil
	}
	return tok, false
}

// IsAuthenticated reports whether a usable token is present.
func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// UserID returns the configured identity, falling back to the token subject.
func (s *Session) UserID() string {
	s.mu.RLock()
	id, authenticated := s.userID, s.authenticated
	s.mu.RUnlock()
	if id != "" || !authenticated {
		return id
	}
	if info, err := InspectToken(s.AccessToken()); err == nil {
		return info.Subject
	}
	return ""
}

// identityLocked resolves the identity without the expiry check, so a logout
// can still report who was logged out. Callers hold s.mu.
func (s *Session) identityLocked() string {
	if s.userID != "" {
		return s.userID
	}
	if info, err := InspectToken(s.currentToken()); err == nil {
		return info.Subject
	}
	return ""
}

// Generation increases on every login and logout.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// IfGeneration runs commit while the session is still authenticated at
// generation gen, and reports whether it ran. A concurrent ForceLogout or
// Login waits for commit to return, so logout hooks always observe its
// effects. commit must not call back into the session.
func (s *Session) IfGeneration(gen uint64, commit func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated || s.generation != gen {
		return false
	}
	commit()
	return true
}

// OnLogout registers a hook run after each forced logout.
func (s *Session) OnLogout(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutHooks = append(s.logoutHooks, h)
}

// OnLogin registers a hook run after each Login.
func (s *Session) OnLogin(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginHooks = append(s.loginHooks, h)
}

// ForceLogout ends the session. It returns false if the session was already
// logged out, in which case no hooks run.
func (s *Session) ForceLogout(reason string) bool {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return false
	}
	userID := s.identityLocked()
	s.authenticated = false
	s.token = ""
	s.generation++
	hooks := append([]Hook(nil), s.logoutHooks...)
	s.mu.Unlock()

	metrics.ForcedLogouts.WithLabelValues(reason).Inc()
	logging.Warn().Str("reason", reason).Str("user_id", userID).Msg("Forced logout")

	for _, h := range hooks {
		h(reason, userID)
	}
	return true
}

// Login starts a new session generation with token. An empty userID falls
// back to the token subject.
func (s *Session) Login(token, userID string) error {
	if token == "" {
		return ErrNoToken
	}

	s.mu.Lock()
	s.token = token
	s.tokenSource = nil
	s.userID = userID
	s.authenticated = true
	s.generation++
	hooks := append([]Hook(nil), s.loginHooks...)
	s.mu.Unlock()

	userID = s.UserID()
	logging.Info().Str("user_id", userID).Msg("Session started")

	for _, h := range hooks {
		h(ReasonLogin, userID)
	}
	return nil
}
