// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","username":"jdoe","schoolId":7,"avatarUrn":"urn:avatar:42","deactivated":false,"lastModified":"2024-01-02T00:00:00Z"}`))
	})
	mux.HandleFunc("/v1/users/avatar/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/avatar/urn:avatar:42" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("avatar-bytes"))
	})
	mux.HandleFunc("/v1/schools/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"7","name":"Rizal Elementary","logoUrn":"urn:logo:7","lastModified":"2024-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/v1/schools/logo/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("logo-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Endpoints(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(ClientConfig{BaseURL: srv.URL + "/"}, staticToken("test-token"))
	ctx := context.Background()

	profile, err := c.GetCurrentUser(ctx)
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if profile.ID != "42" || profile.SchoolID != "7" {
		t.Errorf("unexpected profile %+v", profile)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !profile.LastModified.Equal(want) {
		t.Errorf("LastModified = %v, want %v", profile.LastModified, want)
	}

	avatar, err := c.GetUserAvatar(ctx, profile.AvatarURN)
	if err != nil || string(avatar) != "avatar-bytes" {
		t.Errorf("GetUserAvatar() = %q, %v", avatar, err)
	}

	school, err := c.GetSchool(ctx, string(profile.SchoolID))
	if err != nil || school.LogoURN != "urn:logo:7" {
		t.Fatalf("GetSchool() = %+v, %v", school, err)
	}

	logo, err := c.GetSchoolLogo(ctx, school.LogoURN)
	if err != nil || string(logo) != "logo-bytes" {
		t.Errorf("GetSchoolLogo() = %q, %v", logo, err)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	wrongToken := NewClient(ClientConfig{BaseURL: srv.URL}, staticToken("stale"))
	_, err := wrongToken.GetCurrentUser(ctx)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Errorf("expected StatusError 401, got %v", err)
	}

	c := NewClient(ClientConfig{BaseURL: srv.URL}, staticToken("test-token"))
	_, err = c.GetUserAvatar(ctx, "urn:missing")
	if !IsClientError(err) || errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected 404 client error, got %v", err)
	}

	noToken := NewClient(ClientConfig{BaseURL: srv.URL}, staticToken(""))
	if _, err := noToken.GetCurrentUser(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1}, staticToken("t"))

	if _, err := c.GetCurrentUser(context.Background()); err != nil {
		t.Fatalf("first request should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.GetCurrentUser(ctx); err == nil {
		t.Error("second request should be held by the limiter and fail on context deadline")
	}
	if hits.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", hits.Load())
	}
}

func TestClient_RejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, staticToken("test-token"))
	c.maxBody = int64(len("avatar-bytes")) - 1

	avatar, err := c.GetUserAvatar(ctx, "urn:avatar:42")
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("GetUserAvatar() = %q, %v, want ErrResponseTooLarge", avatar, err)
	}
	if avatar != nil {
		t.Errorf("truncated body returned: %q", avatar)
	}

	c.maxBody = int64(len("avatar-bytes"))
	if avatar, err := c.GetUserAvatar(ctx, "urn:avatar:42"); err != nil || string(avatar) != "avatar-bytes" {
		t.Errorf("body at the limit = %q, %v", avatar, err)
	}
}
