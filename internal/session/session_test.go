// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: sub}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	info, err := InspectToken(signedToken(t, "42", exp))
	if err != nil {
		t.Fatalf("InspectToken() error = %v", err)
	}
	if info.Subject != "42" {
		t.Errorf("Subject = %q, want 42", info.Subject)
	}
	if !info.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, exp)
	}

	if _, err := InspectToken("opaque-token"); !errors.Is(err, ErrNotJWT) {
		t.Errorf("opaque token error = %v, want ErrNotJWT", err)
	}
	if _, err := InspectToken("a.b.c"); err == nil || errors.Is(err, ErrNotJWT) {
		t.Errorf("malformed JWT should fail to parse, got %v", err)
	}
}

func TestTokenInfo_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if (TokenInfo{}).Expired(now) {
		t.Error("token without exp should not expire")
	}
	if (TokenInfo{ExpiresAt: now.Add(time.Second)}).Expired(now) {
		t.Error("future exp should not be expired")
	}
	if !(TokenInfo{ExpiresAt: now}).Expired(now) {
		t.Error("exp equal to now should be expired")
	}
}

func TestSession_AuthenticationAndIdentity(t *testing.T) {
	tok := signedToken(t, "subject-7", time.Now().Add(time.Hour))

	s := New(Config{AccessToken: tok})
	if !s.IsAuthenticated() {
		t.Fatal("session with valid token should be authenticated")
	}
	if s.UserID() != "subject-7" {
		t.Errorf("UserID() = %q, want token subject", s.UserID())
	}

	explicit := New(Config{AccessToken: tok, UserID: "99"})
	if explicit.UserID() != "99" {
		t.Errorf("UserID() = %q, want configured 99", explicit.UserID())
	}

	empty := New(Config{})
	if empty.IsAuthenticated() || empty.AccessToken() != "" {
		t.Error("session without token should be unauthenticated")
	}
}

func TestSession_ExpiredTokenForcesLogout(t *testing.T) {
	tok := signedToken(t, "subject-1", time.Now().Add(time.Minute))
	s := New(Config{AccessToken: tok})

	var gotReason, gotUser string
	s.OnLogout(func(reason, userID string) { gotReason, gotUser = reason, userID })

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if s.IsAuthenticated() {
		t.Error("expired token should not authenticate")
	}
	if gotReason != ReasonTokenExpired || gotUser != "subject-1" {
		t.Errorf("logout hook got (%q, %q), want (%q, subject-1)", gotReason, gotUser, ReasonTokenExpired)
	}
	if s.ForceLogout(ReasonUnauthorized) {
		t.Error("session should already be logged out")
	}
}

func TestSession_ExpiredTokenFromSourceIsWithheld(t *testing.T) {
	var current atomic.Value
	current.Store(signedToken(t, "1", time.Now().Add(time.Minute)))
	s := New(Config{TokenSource: func() (string, error) { return current.Load().(string), nil }})

	var logouts atomic.Int32
	s.OnLogout(func(string, string) { logouts.Add(1) })

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if s.IsAuthenticated() {
		t.Fatal("expired token should not authenticate")
	}

	current.Store(signedToken(t, "1", time.Now().Add(time.Hour)))
	if !s.IsAuthenticated() {
		t.Error("a rotated token should authenticate again")
	}
	if logouts.Load() != 0 {
		t.Errorf("token source expiry ran %d logout hooks, want 0", logouts.Load())
	}
}

func TestSession_TokenSource(t *testing.T) {
	var current atomic.Value
	current.Store("first")
	s := New(Config{TokenSource: func() (string, error) {
		return current.Load().(string), nil
	}})

	if s.AccessToken() != "first" {
		t.Fatalf("AccessToken() = %q", s.AccessToken())
	}
	current.Store("rotated")
	if s.AccessToken() != "rotated" {
		t.Errorf("AccessToken() = %q, want rotated token", s.AccessToken())
	}

	failing := New(Config{TokenSource: func() (string, error) { return "", errors.New("no file") }})
	if failing.IsAuthenticated() {
		t.Error("failing token source should leave session unauthenticated")
	}
}

func TestSession_ForceLogoutOnce(t *testing.T) {
	s := New(Config{AccessToken: "opaque", UserID: "1"})

	var calls atomic.Int32
	var gotReason atomic.Value
	s.OnLogout(func(reason, _ string) {
		calls.Add(1)
		gotReason.Store(reason)
		// hooks may call back into the session
		_ = s.IsAuthenticated()
	})

	gen := s.Generation()

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ForceLogout(ReasonUserDeactivated) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("ForceLogout returned true %d times, want 1", wins.Load())
	}
	if calls.Load() != 1 {
		t.Errorf("logout hook ran %d times, want 1", calls.Load())
	}
	if gotReason.Load() != ReasonUserDeactivated {
		t.Errorf("reason = %v", gotReason.Load())
	}
	if s.IsAuthenticated() {
		t.Error("session should be unauthenticated after logout")
	}
	if s.Generation() <= gen {
		t.Error("generation should advance on logout")
	}
}

func TestSession_Login(t *testing.T) {
	s := New(Config{AccessToken: "opaque", UserID: "1"})
	s.ForceLogout(ReasonUnauthorized)

	var logins atomic.Int32
	var loginUser atomic.Value
	s.OnLogin(func(_, userID string) {
		logins.Add(1)
		loginUser.Store(userID)
	})

	if err := s.Login("", "1"); !errors.Is(err, ErrNoToken) {
		t.Errorf("Login with empty token = %v, want ErrNoToken", err)
	}

	gen := s.Generation()
	if err := s.Login("new-token", "2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.IsAuthenticated() || s.UserID() != "2" {
		t.Error("Login should authenticate with the new identity")
	}
	if s.Generation() <= gen {
		t.Error("generation should advance on login")
	}
	if logins.Load() != 1 || loginUser.Load() != "2" {
		t.Errorf("login hook ran %d times with %v, want once with 2", logins.Load(), loginUser.Load())
	}

	if !s.ForceLogout(ReasonUserDeactivated) {
		t.Error("a new login should allow one more forced logout")
	}
}

func TestSession_LogoutHookGetsTokenSubject(t *testing.T) {
	s := New(Config{AccessToken: signedToken(t, "99", time.Now().Add(time.Hour))})
	if s.UserID() != "99" {
		t.Fatalf("UserID() = %q, want token subject", s.UserID())
	}

	var gotUser string
	s.OnLogout(func(_, userID string) { gotUser = userID })
	s.ForceLogout(ReasonUserDeactivated)

	if gotUser != "99" {
		t.Errorf("logout hook userID = %q, want 99", gotUser)
	}
	if s.UserID() != "" {
		t.Errorf("UserID() after logout = %q, want empty", s.UserID())
	}
}

func TestSession_IfGeneration(t *testing.T) {
	s := New(Config{AccessToken: "opaque", UserID: "1"})
	gen := s.Generation()

	ran := false
	if !s.IfGeneration(gen, func() { ran = true }) || !ran {
		t.Fatal("commit should run for the current generation")
	}

	s.ForceLogout(ReasonUserDeactivated)
	if s.IfGeneration(gen, func() { t.Error("commit ran after logout") }) {
		t.Error("IfGeneration should refuse a stale generation")
	}
	if s.IfGeneration(s.Generation(), func() { t.Error("commit ran while logged out") }) {
		t.Error("IfGeneration should refuse an unauthenticated session")
	}
}

func TestSession_LogoutWaitsForCommit(t *testing.T) {
	s := New(Config{AccessToken: "opaque", UserID: "1"})
	gen := s.Generation()

	var committed atomic.Bool
	var sawCommit atomic.Bool
	s.OnLogout(func(string, string) { sawCommit.Store(committed.Load()) })

	inCommit := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.IfGeneration(gen, func() {
			close(inCommit)
			<-release
			committed.Store(true)
		})
	}()

	<-inCommit
	logoutDone := make(chan struct{})
	go func() {
		defer close(logoutDone)
		s.ForceLogout(ReasonUserDeactivated)
	}()

	select {
	case <-logoutDone:
		t.Fatal("ForceLogout finished while a commit was in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
	<-logoutDone

	if !sawCommit.Load() {
		t.Error("logout hook should observe the completed commit")
	}
}
