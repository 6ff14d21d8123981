// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/metrics"
)

const (
	maxResponseBytes = 10 << 20
	maxErrorBody     = 512
)

type requestConfig struct {
	path     string
	endpoint string // metrics label
}

// doRequest performs an authenticated GET and returns the body of a 2xx
// response.
func (c *Client) doRequest(ctx context.Context, cfg requestConfig) ([]byte, error) {
	token := c.tokens.AccessToken()
	if token == "" {
		return nil, ErrNoToken
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cfg.path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json, */*")
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(cfg.endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("request %s: %w", cfg.path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordBackendRequest(cfg.endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Endpoint: cfg.path, Code: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.path, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("read %s: %w (limit %d bytes)", cfg.path, ErrResponseTooLarge, c.maxBody)
	}
	return body, nil
}

func (c *Client) doJSON(ctx context.Context, cfg requestConfig, result interface{}) error {
	body, err := c.doRequest(ctx, cfg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %w", cfg.path, err)
	}
	return nil
}
