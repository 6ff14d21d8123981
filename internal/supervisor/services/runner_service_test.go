// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockRunner struct {
	runs      atomic.Int32
	started   chan struct{}
	err       error
	returnNow bool
}

func newMockRunner() *mockRunner {
	return &mockRunner{started: make(chan struct{}, 8)}
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runs.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.err != nil || m.returnNow {
		return m.err
	}
	<-ctx.Done()
	return nil
}

func TestRunnerService(t *testing.T) {
	var _ suture.Service = (*RunnerService)(nil)

	t.Run("nil return after cancel maps to context error", func(t *testing.T) {
		runner := newMockRunner()
		svc := NewRunnerService("realtime-client", runner)
		if svc.String() != "realtime-client" {
			t.Errorf("String() = %q", svc.String())
		}

		err := serveUntilCanceled(t, svc, runner.started)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("error is wrapped with the service name", func(t *testing.T) {
		runner := newMockRunner()
		runner.err = errors.New("bus closed")

		err := NewRunnerService("event-forwarder", runner).Serve(context.Background())
		if !errors.Is(err, runner.err) || !strings.Contains(err.Error(), "event-forwarder") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("early nil return is a failure", func(t *testing.T) {
		runner := newMockRunner()
		runner.returnNow = true

		if err := NewRunnerService("runner", runner).Serve(context.Background()); err == nil {
			t.Error("expected an error for a runner that returned early")
		}
	})
}

func TestRunnerService_RestartedBySupervisor(t *testing.T) {
	runner := newMockRunner()
	runner.returnNow = true

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 100,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewRunnerService("flaky", runner))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)
	defer func() {
		cancel()
		<-errCh
	}()

	deadline := time.Now().Add(2 * time.Second)
	for runner.runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("runner ran %d times, want a restart", runner.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
