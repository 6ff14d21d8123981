// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

/*
Package backend is the REST client for the SchoolFin API endpoints the sync
layer reads:

  - GET /v1/users/me            current user profile and permissions
  - GET /v1/users/avatar/{urn}  avatar blob
  - GET /v1/schools/{id}        school record
  - GET /v1/schools/logo/{urn}  school logo blob

Every request carries the session's bearer token and waits on a client-side
rate limiter. Wrap the client in a CircuitBreakerClient for production use.
*/
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/schoolfin/syncd/internal/models"
)

// ClientInterface is implemented by Client and CircuitBreakerClient.
type ClientInterface interface {
	GetCurrentUser(ctx context.Context) (*models.UserProfile, error)
	GetUserAvatar(ctx context.Context, urn string) ([]byte, error)
	GetSchool(ctx context.Context, id string) (*models.School, error)
	GetSchoolLogo(ctx context.Context, urn string) ([]byte, error)
}

var _ ClientInterface = (*Client)(nil)

// TokenProvider supplies the bearer token. *session.Session implements it.
type TokenProvider interface {
	AccessToken() string
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables client-side limiting
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBody    int64
}

// NewClient returns a client for cfg.BaseURL.
func NewClient(cfg ClientConfig, tokens TokenProvider) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		maxBody:    maxResponseBytes,
	}
}

// BaseURL returns the normalized API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetCurrentUser fetches the authenticated user's profile.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.doJSON(ctx, requestConfig{path: "/v1/users/me", endpoint: "users_me"}, &profile); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &profile, nil
}

// GetUserAvatar fetches the avatar blob referenced by urn.
func (c *Client) GetUserAvatar(ctx context.Context, urn string) ([]byte, error) {
	body, err := c.doRequest(ctx, requestConfig{
		path:     "/v1/users/avatar/" + url.PathEscape(urn),
		endpoint: "users_avatar",
	})
	if err != nil {
		return nil, fmt.Errorf("get user avatar: %w", err)
	}
	return body, nil
}

// GetSchool fetches a school by id.
func (c *Client) GetSchool(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	cfg := requestConfig{path: "/v1/schools/" + url.PathEscape(id), endpoint: "schools_get"}
	if err := c.doJSON(ctx, cfg, &school); err != nil {
		return nil, fmt.Errorf("get school %s: %w", id, err)
	}
	return &school, nil
}

// GetSchoolLogo fetches the logo blob referenced by urn.
func (c *Client) GetSchoolLogo(ctx context.Context, urn string) ([]byte, error) {
	body, err := c.doRequest(ctx, requestConfig{
		path:     "/v1/schools/logo/" + url.PathEscape(urn),
		endpoint: "schools_logo",
	})
	if err != nil {
		return nil, fmt.Errorf("get school logo: %w", err)
	}
	return body, nil
}
