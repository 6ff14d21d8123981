// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockService implements suture.Service with controllable failures.
type MockService struct {
	name       string
	startCount atomic.Int32
	failCount  atomic.Int32
	maxFails   atomic.Int32
}

func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

func (m *MockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)

	if limit := m.maxFails.Load(); limit > 0 && m.failCount.Add(1) <= limit {
		return errors.New("simulated failure")
	}

	<-ctx.Done()
	return ctx.Err()
}

// SetFailCount makes the next n calls to Serve fail immediately.
func (m *MockService) SetFailCount(n int) {
	m.maxFails.Store(int32(n))
}

func (m *MockService) StartCount() int32 {
	return m.startCount.Load()
}

func (m *MockService) String() string {
	return m.name
}
