// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package sink

import (
	"context"

	"github.com/sightline-io/sightline/internal/models"
)

// NormalizedBatchInserter is the slice of the relational store the sink
// needs. Satisfied by *store.Store.
type NormalizedBatchInserter interface {
	InsertNormalizedBatch(ctx context.Context, records []*models.NormalizedRecord) (int, error)
}

// RelationalSink bulk-inserts normalized records into the relational store.
// It is the required sink: a failure here aborts the fan-out because later
// stages and the ledger depend on it.
type RelationalSink struct {
	store NormalizedBatchInserter
}

// NewRelationalSink creates the required relational sink.
func NewRelationalSink(store NormalizedBatchInserter) *RelationalSink {
	return &RelationalSink{store: store}
}

// Name implements Sink.
func (s *RelationalSink) Name() string { return RelationalName }

// Write implements Sink.
func (s *RelationalSink) Write(ctx context.Context, records []*models.NormalizedRecord) (int, error) {
	return s.store.InsertNormalizedBatch(ctx, records)
}
