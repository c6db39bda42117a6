// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunFunc is one scheduled unit of work. A returned error triggers the
// driver's cool-down before the next occurrence is computed.
type RunFunc func(ctx context.Context) error

// DriverConfig holds configuration for a schedule driver loop.
type DriverConfig struct {
	// Name identifies the worker in logs.
	Name string

	// CronExpression is the optional 5-field schedule. When empty,
	// FallbackInterval is used instead.
	CronExpression string

	// Timezone for cron evaluation. Empty means UTC.
	Timezone string

	// FallbackInterval is the fixed interval used when no cron expression
	// is configured.
	FallbackInterval time.Duration

	// ErrorCooldown is how long to wait after a failed run before the next
	// occurrence is computed, to avoid a hot error loop.
	ErrorCooldown time.Duration
}

// Driver runs a RunFunc on a cron or fixed-interval schedule.
//
// After each run, success or failure, the next occurrence is recomputed from
// the then-current time: occurrences missed during a long run are not queued
// or backfilled, and at most one run is in flight at a time. Cancellation is
// honored during the schedule sleep and between runs; a run already in
// progress completes naturally.
type Driver struct {
	cfg    DriverConfig
	run    RunFunc
	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver creates a schedule driver for the given run function.
func NewDriver(cfg DriverConfig, run RunFunc, logger *zerolog.Logger) *Driver {
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = time.Hour
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = 5 * time.Minute
	}

	return &Driver{
		cfg:    cfg,
		run:    run,
		logger: logger.With().Str("component", "schedule-driver").Str("worker", cfg.Name).Logger(),
		now:    time.Now,
	}
}

// Next computes the next run instant strictly after the given time.
// Falls back to the fixed interval when no expression is configured or the
// expression does not parse.
func (d *Driver) Next(after time.Time) time.Time {
	if d.cfg.CronExpression == "" {
		return after.Add(d.cfg.FallbackInterval)
	}

	next, err := NextOccurrence(d.cfg.CronExpression, after, d.cfg.Timezone)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("cron", d.cfg.CronExpression).
			Dur("fallback", d.cfg.FallbackInterval).
			Msg("Invalid cron expression, using fallback interval")
		return after.Add(d.cfg.FallbackInterval)
	}
	return next
}

// Serve runs the schedule loop until the context is canceled.
// It implements suture.Service so workers slot into the supervisor tree.
func (d *Driver) Serve(ctx context.Context) error {
	d.logger.Info().
		Str("cron", d.cfg.CronExpression).
		Dur("fallback", d.cfg.FallbackInterval).
		Msg("Schedule driver starting")

	for {
		now := d.now()
		next := d.Next(now)

		d.logger.Debug().Time("next_run", next).Msg("Waiting for next occurrence")
		if err := sleepUntil(ctx, next.Sub(now)); err != nil {
			d.logger.Info().Msg("Schedule driver stopping")
			return err
		}

		if err := d.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error().
				Err(err).
				Dur("cooldown", d.cfg.ErrorCooldown).
				Msg("Run failed, cooling down")
			if err := sleepUntil(ctx, d.cfg.ErrorCooldown); err != nil {
				return err
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (d *Driver) String() string {
	return d.cfg.Name
}

// sleepUntil waits for the duration or until the context is canceled.
func sleepUntil(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		// Still honor cancellation between back-to-back runs.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
