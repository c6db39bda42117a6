// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package pipeline orchestrates the scheduled workers: the queue processor
// (consume, audit, normalize, fan out, record) and the report fetcher
// (credentials, fetch, publish).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sightline-io/sightline/internal/metrics"
	"github.com/sightline-io/sightline/internal/models"
	"github.com/sightline-io/sightline/internal/normalize"
	"github.com/sightline-io/sightline/internal/queue"
	"github.com/sightline-io/sightline/internal/sink"
)

// BatchReader pulls a bounded batch of pending records from the queue.
// Satisfied by *queue.Consumer.
type BatchReader interface {
	Consume(ctx context.Context, maxCount int, budget time.Duration) ([]*queue.ConsumedRecord, error)
}

// RawWriter persists audit copies of consumed messages.
// Satisfied by *store.Store.
type RawWriter interface {
	PersistRaw(ctx context.Context, msgs []*models.ReportMessage, provenance string) (int, error)
}

// RunRecorder opens and finalizes run ledger entries.
// Satisfied by *ledger.Ledger.
type RunRecorder interface {
	Begin(processor, subjectID, sourceID string) *models.RunLedgerEntry
	Finish(ctx context.Context, entry *models.RunLedgerEntry)
}

// FanoutWriter writes a normalized batch to all enabled sinks.
// Satisfied by *sink.Fanout.
type FanoutWriter interface {
	Write(ctx context.Context, records []*models.NormalizedRecord) (*sink.Results, error)
}

// ProcessorConfig holds one queue-processing worker's settings.
type ProcessorConfig struct {
	// Name is the processor variant tag recorded on every normalized
	// record and ledger entry this worker produces.
	Name string

	// BatchSize caps records accepted per run.
	BatchSize int

	// PollBudget bounds the queue poll within a run.
	PollBudget time.Duration

	// Provenance tags raw records with the queue/topic they came from.
	Provenance string
}

// Processor is one pipeline run executor: consume a batch, persist the raw
// audit copy, normalize, fan out, and always finalize the run ledger entry.
//
// Within a run: raw persistence happens-before normalization happens-before
// fan-out happens-before ledger finalization. Queue messages are
// acknowledged only after raw persistence succeeds and nacked when it
// fails, so a crash mid-run causes redelivery rather than data loss
// (at-least-once; sinks deduplicate by insert id).
type Processor struct {
	cfg    ProcessorConfig
	reader BatchReader
	raw    RawWriter
	fanout FanoutWriter
	ledger RunRecorder
	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewProcessor wires a queue-processing worker.
func NewProcessor(
	cfg ProcessorConfig,
	reader BatchReader,
	raw RawWriter,
	fanout FanoutWriter,
	ledger RunRecorder,
	logger *zerolog.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = 30 * time.Second
	}

	return &Processor{
		cfg:    cfg,
		reader: reader,
		raw:    raw,
		fanout: fanout,
		ledger: ledger,
		logger: logger.With().Str("component", "processor").Str("worker", cfg.Name).Logger(),
		now:    time.Now,
	}
}

// Run executes one pipeline run. The ledger entry is finalized from a
// deferred path regardless of outcome.
func (p *Processor) Run(ctx context.Context) (err error) {
	start := p.now()
	entry := p.ledger.Begin(p.cfg.Name, "", "")

	defer func() {
		if err != nil {
			entry.ErrorMessage = err.Error()
		}
		// The entry must land even when the run's context was canceled
		// mid-flight, so finalization uses its own deadline.
		finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p.ledger.Finish(finishCtx, entry)
		metrics.RecordRun(p.cfg.Name, err, p.now().Sub(start))
	}()

	records, consumeErr := p.reader.Consume(ctx, p.cfg.BatchSize, p.cfg.PollBudget)
	if len(records) == 0 {
		if consumeErr != nil {
			err = fmt.Errorf("consume: %w", consumeErr)
			return err
		}
		p.logger.Debug().Msg("No pending records")
		return nil
	}

	msgs := make([]*models.ReportMessage, len(records))
	for i, rec := range records {
		msgs[i] = rec.Message
	}
	entry.RecordsProcessed = len(msgs)
	metrics.RecordsConsumed.WithLabelValues(p.cfg.Name).Add(float64(len(msgs)))

	if _, rawErr := p.raw.PersistRaw(ctx, msgs, p.cfg.Provenance); rawErr != nil {
		// Raw persistence is fatal: nack everything so the batch is
		// redelivered, and never fan out unaudited data.
		for _, rec := range records {
			rec.Nack()
		}
		err = fmt.Errorf("persist raw: %w", rawErr)
		return err
	}

	// Commit boundary: the batch is audited, release it from the queue.
	for _, rec := range records {
		rec.Ack()
	}

	normalized := normalize.Normalize(msgs, p.cfg.Name, p.now().UTC())
	entry.RecordsNormalized = len(normalized)
	metrics.RecordsNormalized.WithLabelValues(p.cfg.Name).Add(float64(len(normalized)))

	results, fanErr := p.fanout.Write(ctx, normalized)
	entry.RelationalStored = results.Stored(sink.RelationalName)
	entry.DocumentStored = results.Stored(sink.DocumentName)
	entry.WarehouseStored = results.Stored(sink.WarehouseName)
	if fanErr != nil {
		err = fmt.Errorf("fan-out: %w", fanErr)
		return err
	}

	p.logger.Info().
		Int("processed", entry.RecordsProcessed).
		Int("normalized", entry.RecordsNormalized).
		Int("relational", entry.RelationalStored).
		Int("document", entry.DocumentStored).
		Int("warehouse", entry.WarehouseStored).
		Dur("elapsed", p.now().Sub(start)).
		Msg("Run complete")
	return nil
}
