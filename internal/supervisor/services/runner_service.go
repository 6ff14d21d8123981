// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package services

import (
	"context"
	"fmt"

	"github.com/schoolfin/syncd/internal/logging"
)

// Runner is a component that blocks in Run until ctx is canceled.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService supervises a Runner such as the realtime client.
type RunnerService struct {
	runner Runner
	name   string
}

func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{
		runner: runner,
		name:   name,
	}
}

// Serve runs the component. A nil return before cancellation is reported as
// an error so the supervisor restarts the component.
func (r *RunnerService) Serve(ctx context.Context) error {
	err := r.runner.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", r.name, err)
	}
	logging.Warn().Str("service", r.name).Msg("Service returned before shutdown")
	return fmt.Errorf("%s stopped unexpectedly", r.name)
}

func (r *RunnerService) String() string {
	return r.name
}
