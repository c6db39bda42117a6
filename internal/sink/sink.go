// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package sink fans normalized record batches out to the configured
// destination stores: relational (required), document, and warehouse.
package sink

import (
	"context"

	"github.com/sightline-io/sightline/internal/models"
)

// Sink names used in ledger counts, metrics labels, and logs.
const (
	RelationalName = "relational"
	DocumentName   = "document"
	WarehouseName  = "warehouse"
)

// Sink is one destination store for normalized records.
// Write returns the number of records stored; implementations are free to
// report fewer than len(records) when the store deduplicates retries.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []*models.NormalizedRecord) (int, error)
}

// Results holds per-sink stored counts for the run ledger.
type Results struct {
	counts map[string]int
}

// NewResults creates an empty result set.
func NewResults() *Results {
	return &Results{counts: make(map[string]int)}
}

// Record stores the count written by the named sink.
func (r *Results) Record(name string, count int) {
	r.counts[name] = count
}

// Stored returns the count written by the named sink (zero if it did not
// complete).
func (r *Results) Stored(name string) int {
	return r.counts[name]
}
