// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sightline-io/sightline/internal/metrics"
	"github.com/sightline-io/sightline/internal/models"
)

// Fanout writes a normalized batch to every enabled sink.
//
// Policy (fixed, see DESIGN.md): the required relational sink goes first and
// aborts the fan-out on failure; optional sinks continue on error, with
// their failures aggregated into the returned error while the other sinks
// are still attempted. Per-sink stored counts survive partial failure so the
// run ledger reflects exactly what landed where.
type Fanout struct {
	relational Sink
	optional   []Sink
	logger     zerolog.Logger
}

// NewFanout creates a fan-out over the required relational sink and any
// enabled optional sinks.
func NewFanout(relational Sink, logger *zerolog.Logger, optional ...Sink) *Fanout {
	return &Fanout{
		relational: relational,
		optional:   optional,
		logger:     logger.With().Str("component", "fanout").Logger(),
	}
}

// Write fans the batch out to all enabled sinks. The returned Results holds
// the per-sink stored counts for the sinks that completed, even when err is
// non-nil.
func (f *Fanout) Write(ctx context.Context, records []*models.NormalizedRecord) (*Results, error) {
	results := NewResults()

	count, err := f.relational.Write(ctx, records)
	metrics.RecordSinkWrite(f.relational.Name(), count, err)
	if err != nil {
		// Required sink: abort before the optional sinks run.
		return results, fmt.Errorf("%s sink: %w", f.relational.Name(), err)
	}
	results.Record(f.relational.Name(), count)

	var errs []error
	for _, s := range f.optional {
		count, err := s.Write(ctx, records)
		metrics.RecordSinkWrite(s.Name(), count, err)
		if err != nil {
			f.logger.Error().Err(err).Str("sink", s.Name()).Msg("Optional sink failed")
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		results.Record(s.Name(), count)
	}

	return results, errors.Join(errs...)
}
