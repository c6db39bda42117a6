// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package ledger records one outcome row per pipeline run. The entry is the
// run's audit trail: it must be written exactly once, from a guaranteed
// path, and must reflect partial progress even when the run fails.
package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sightline-io/sightline/internal/models"
)

// EntryWriter is the slice of the relational store the ledger needs.
// Satisfied by *store.Store.
type EntryWriter interface {
	CreateRunLedgerEntry(ctx context.Context, entry *models.RunLedgerEntry) error
}

// Ledger creates and persists run ledger entries.
type Ledger struct {
	store  EntryWriter
	logger zerolog.Logger
}

// New creates a run ledger backed by the relational store.
func New(store EntryWriter, logger *zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "run-ledger").Logger(),
	}
}

// Begin creates the entry for a run that is starting. Counts are mutated by
// the pipeline as stages complete.
func (l *Ledger) Begin(processor, subjectID, sourceID string) *models.RunLedgerEntry {
	if subjectID == "" {
		subjectID = models.SystemSubject
	}
	if sourceID == "" {
		sourceID = models.MultipleSources
	}
	return &models.RunLedgerEntry{
		SubjectID:   subjectID,
		SourceID:    sourceID,
		ProcessedAt: time.Now().UTC(),
		Processor:   processor,
	}
}

// Finish persists the entry exactly once. Call from a deferred path so the
// run is recorded even when an error propagates out of a stage. A ledger
// write failure is logged only: there is no further recovery, and no run
// record exists for that attempt.
func (l *Ledger) Finish(ctx context.Context, entry *models.RunLedgerEntry) {
	if err := l.store.CreateRunLedgerEntry(ctx, entry); err != nil {
		l.logger.Error().
			Err(err).
			Str("processor", entry.Processor).
			Str("run_error", entry.ErrorMessage).
			Msg("Failed to write run ledger entry")
	}
}
