// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sightline-io/sightline/internal/models"
	"github.com/sightline-io/sightline/internal/queue"
	"github.com/sightline-io/sightline/internal/sink"
)

type fakeReader struct {
	records []*queue.ConsumedRecord
	err     error
}

func (f *fakeReader) Consume(ctx context.Context, maxCount int, budget time.Duration) ([]*queue.ConsumedRecord, error) {
	return f.records, f.err
}

type fakeRawWriter struct {
	err    error
	stored int
	msgs   []*models.ReportMessage
}

func (f *fakeRawWriter) PersistRaw(ctx context.Context, msgs []*models.ReportMessage, provenance string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.msgs = msgs
	f.stored = len(msgs)
	return f.stored, nil
}

type fakeFanout struct {
	results *sink.Results
	err     error
	batch   []*models.NormalizedRecord
	called  bool
}

func (f *fakeFanout) Write(ctx context.Context, records []*models.NormalizedRecord) (*sink.Results, error) {
	f.called = true
	f.batch = records
	if f.results == nil {
		f.results = sink.NewResults()
		f.results.Record(sink.RelationalName, len(records))
	}
	return f.results, f.err
}

type fakeLedger struct {
	entries []*models.RunLedgerEntry
}

func (f *fakeLedger) Begin(processor, subjectID, sourceID string) *models.RunLedgerEntry {
	if subjectID == "" {
		subjectID = models.SystemSubject
	}
	if sourceID == "" {
		sourceID = models.MultipleSources
	}
	return &models.RunLedgerEntry{SubjectID: subjectID, SourceID: sourceID, Processor: processor}
}

func (f *fakeLedger) Finish(ctx context.Context, entry *models.RunLedgerEntry) {
	f.entries = append(f.entries, entry)
}

func plLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func consumedBatch(t *testing.T, rowGroupCounts ...int) ([]*queue.ConsumedRecord, []*message.Message) {
	t.Helper()
	var records []*queue.ConsumedRecord
	var wmMsgs []*message.Message
	for i, n := range rowGroupCounts {
		groups := make([]models.RowGroup, n)
		for j := range groups {
			groups[j] = models.RowGroup{Dimensions: []string{"US"}}
		}
		report := &models.ReportMessage{
			SchemaVersion: models.SchemaVersion,
			SubjectID:     "tenant-a",
			SourceID:      "prop-1",
			GeneratedAt:   time.Date(2026, 3, 2, 12, 0, 0, i, time.UTC),
			RowGroups:     groups,
		}
		wm := message.NewMessage(uuid.New().String(), nil)
		wmMsgs = append(wmMsgs, wm)
		records = append(records, queue.NewConsumedRecord(report, wm))
	}
	return records, wmMsgs
}

func assertAcked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Error("message nacked, want acked")
	default:
		t.Error("message neither acked nor nacked")
	}
}

func assertNacked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Nacked():
	case <-msg.Acked():
		t.Error("message acked, want nacked")
	default:
		t.Error("message neither acked nor nacked")
	}
}

func TestProcessorRunHappyPath(t *testing.T) {
	records, wmMsgs := consumedBatch(t, 3, 2, 2)
	reader := &fakeReader{records: records}
	raw := &fakeRawWriter{}
	fanout := &fakeFanout{}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor", Provenance: "REPORTS/reports.batched"},
		reader, raw, fanout, runLedger, plLogger())

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if raw.stored != 3 {
		t.Errorf("raw stored = %d, want 3 messages", raw.stored)
	}
	if len(fanout.batch) != 7 {
		t.Errorf("fan-out batch = %d records, want 7 (one per row-group)", len(fanout.batch))
	}
	for _, wm := range wmMsgs {
		assertAcked(t, wm)
	}

	if len(runLedger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(runLedger.entries))
	}
	entry := runLedger.entries[0]
	if entry.RecordsProcessed != 3 {
		t.Errorf("RecordsProcessed = %d, want 3", entry.RecordsProcessed)
	}
	if entry.RecordsNormalized != 7 {
		t.Errorf("RecordsNormalized = %d, want 7", entry.RecordsNormalized)
	}
	if entry.RelationalStored != 7 {
		t.Errorf("RelationalStored = %d, want 7", entry.RelationalStored)
	}
	if entry.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", entry.ErrorMessage)
	}
	if entry.SubjectID != models.SystemSubject {
		t.Errorf("SubjectID = %q, want %q", entry.SubjectID, models.SystemSubject)
	}
}

func TestProcessorRunEmptyBatch(t *testing.T) {
	reader := &fakeReader{}
	raw := &fakeRawWriter{}
	fanout := &fakeFanout{}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor"}, reader, raw, fanout, runLedger, plLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fanout.called {
		t.Error("fan-out ran for an empty batch")
	}
	// The ledger entry still lands: a no-op run is a recorded run.
	if len(runLedger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(runLedger.entries))
	}
	if runLedger.entries[0].RecordsProcessed != 0 {
		t.Errorf("RecordsProcessed = %d, want 0", runLedger.entries[0].RecordsProcessed)
	}
}

func TestProcessorRunRawFailureNacksBatch(t *testing.T) {
	records, wmMsgs := consumedBatch(t, 2, 1)
	reader := &fakeReader{records: records}
	raw := &fakeRawWriter{err: errors.New("connection refused")}
	fanout := &fakeFanout{}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor"}, reader, raw, fanout, runLedger, plLogger())
	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want raw persistence failure")
	}

	// Unaudited data never reaches the sinks, and the batch is redelivered.
	if fanout.called {
		t.Error("fan-out ran after raw persistence failed")
	}
	for _, wm := range wmMsgs {
		assertNacked(t, wm)
	}

	entry := runLedger.entries[0]
	if entry.ErrorMessage == "" {
		t.Error("ErrorMessage empty, want the raw failure recorded")
	}
	if entry.RecordsProcessed != 2 {
		t.Errorf("RecordsProcessed = %d, want 2", entry.RecordsProcessed)
	}
	if entry.RecordsNormalized != 0 {
		t.Errorf("RecordsNormalized = %d, want 0", entry.RecordsNormalized)
	}
}

func TestProcessorRunFanoutPartialFailure(t *testing.T) {
	records, wmMsgs := consumedBatch(t, 2)
	reader := &fakeReader{records: records}
	raw := &fakeRawWriter{}

	results := sink.NewResults()
	results.Record(sink.RelationalName, 2)
	results.Record(sink.WarehouseName, 2)
	fanout := &fakeFanout{results: results, err: errors.New("document sink: disk full")}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor"}, reader, raw, fanout, runLedger, plLogger())
	err := p.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want fan-out failure surfaced")
	}

	// The batch was audited before fan-out, so it stays acked.
	for _, wm := range wmMsgs {
		assertAcked(t, wm)
	}

	// Per-sink counts from the completed sinks survive the failure.
	entry := runLedger.entries[0]
	if entry.RelationalStored != 2 {
		t.Errorf("RelationalStored = %d, want 2", entry.RelationalStored)
	}
	if entry.WarehouseStored != 2 {
		t.Errorf("WarehouseStored = %d, want 2", entry.WarehouseStored)
	}
	if entry.DocumentStored != 0 {
		t.Errorf("DocumentStored = %d, want 0", entry.DocumentStored)
	}
	if entry.ErrorMessage == "" {
		t.Error("ErrorMessage empty, want fan-out failure recorded")
	}
}

func TestProcessorRunConsumeError(t *testing.T) {
	reader := &fakeReader{err: errors.New("subscribe failed")}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor"}, reader, &fakeRawWriter{}, &fakeFanout{}, runLedger, plLogger())
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil error, want consume failure")
	}
	if len(runLedger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1 even on consume failure", len(runLedger.entries))
	}
}

func TestProcessorRunPartialBatchWithConsumeError(t *testing.T) {
	// A poll that times out mid-batch still processes what it got.
	records, _ := consumedBatch(t, 1)
	reader := &fakeReader{records: records, err: context.DeadlineExceeded}
	raw := &fakeRawWriter{}
	fanout := &fakeFanout{}
	runLedger := &fakeLedger{}

	p := NewProcessor(ProcessorConfig{Name: "queue-processor"}, reader, raw, fanout, runLedger, plLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil for partial batch", err)
	}
	if !fanout.called {
		t.Error("fan-out skipped for partial batch")
	}
}
