// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sightline-io/sightline/internal/models"
	"github.com/sightline-io/sightline/internal/report"
)

type fakeCredentials struct {
	creds map[string]*models.Credential
	err   error
}

func (f *fakeCredentials) Credentials(ctx context.Context, subjectID string) (*models.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.creds[subjectID]
	if !ok {
		return nil, report.ErrCredentialsNotFound
	}
	return c, nil
}

type fakeSource struct {
	table    *models.ReportTable
	err      error
	requests []report.Request
}

func (f *fakeSource) FetchReport(ctx context.Context, creds *models.Credential, req report.Request) (*models.ReportTable, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type fakePublisher struct {
	published []*models.ReportMessage
	err       error
}

func (f *fakePublisher) PublishReport(ctx context.Context, msg *models.ReportMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func fetchFixtures() (*fakeCredentials, *fakeSource, *fakePublisher, *fakeLedger) {
	creds := &fakeCredentials{creds: map[string]*models.Credential{
		"tenant-a": {SubjectID: "tenant-a", AccessToken: "tok-a"},
		"tenant-b": {SubjectID: "tenant-b", AccessToken: "tok-b"},
	}}
	source := &fakeSource{table: &models.ReportTable{Rows: []models.RowGroup{
		{Dimensions: []string{"US"}, Metrics: []models.MetricValue{{Name: "activeUsers", Value: "5"}}},
	}}}
	return creds, source, &fakePublisher{}, &fakeLedger{}
}

func newTestFetcher(cfg FetcherConfig, creds *fakeCredentials, source *fakeSource, pub *fakePublisher, led *fakeLedger) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "report-fetcher"
	}
	if cfg.FetchesPerSecond == 0 {
		cfg.FetchesPerSecond = 1000 // Keep tests fast
	}
	f := NewFetcher(cfg, creds, source, pub, led, plLogger())
	f.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFetcherRunPublishesPerSubject(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	f := newTestFetcher(FetcherConfig{
		Subjects: []SubjectConfig{
			{SubjectID: "tenant-a", SourceID: "prop-1"},
			{SubjectID: "tenant-b", SourceID: "prop-2"},
		},
		Dimensions: []string{"country"},
		Metrics:    []string{"activeUsers", "sessions"},
		DaysBack:   2,
	}, creds, source, pub, led)

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("published = %d messages, want 2", len(pub.published))
	}
	msg := pub.published[0]
	if msg.SubjectID != "tenant-a" || msg.SourceID != "prop-1" {
		t.Errorf("message identity = %s/%s, want tenant-a/prop-1", msg.SubjectID, msg.SourceID)
	}
	if msg.SchemaVersion != models.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", msg.SchemaVersion, models.SchemaVersion)
	}
	if len(msg.RowGroups) != 1 {
		t.Errorf("RowGroups = %d, want 1", len(msg.RowGroups))
	}

	req := source.requests[0]
	if req.StartDate != "2026-02-28" || req.EndDate != "2026-03-02" {
		t.Errorf("date range = %s..%s, want 2026-02-28..2026-03-02", req.StartDate, req.EndDate)
	}

	if len(led.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(led.entries))
	}
	if led.entries[0].RecordsProcessed != 2 {
		t.Errorf("RecordsProcessed = %d, want 2", led.entries[0].RecordsProcessed)
	}
}

func TestFetcherRunSkipsSubjectsWithoutCredentials(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	f := newTestFetcher(FetcherConfig{
		Subjects: []SubjectConfig{
			{SubjectID: "tenant-a", SourceID: "prop-1"},
			{SubjectID: "tenant-unknown", SourceID: "prop-9"},
		},
	}, creds, source, pub, led)

	// A missing token is a skip, not a failure.
	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(pub.published) != 1 {
		t.Errorf("published = %d messages, want 1", len(pub.published))
	}
	if led.entries[0].RecordsProcessed != 1 {
		t.Errorf("RecordsProcessed = %d, want 1", led.entries[0].RecordsProcessed)
	}
}

func TestFetcherRunAggregatesSubjectFailures(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	source.err = errors.New("upstream 500")
	f := newTestFetcher(FetcherConfig{
		Subjects: []SubjectConfig{
			{SubjectID: "tenant-a", SourceID: "prop-1"},
			{SubjectID: "tenant-b", SourceID: "prop-2"},
		},
	}, creds, source, pub, led)

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want aggregated fetch failures")
	}
	// One bad subject does not stop the rest: both were attempted.
	if len(source.requests) != 2 {
		t.Errorf("fetch attempts = %d, want 2", len(source.requests))
	}
	for _, subject := range []string{"tenant-a", "tenant-b"} {
		if !strings.Contains(err.Error(), subject) {
			t.Errorf("error %q missing subject %s", err, subject)
		}
	}
	if led.entries[0].ErrorMessage == "" {
		t.Error("ErrorMessage empty, want failures recorded")
	}
}

func TestFetcherRunPublishFailure(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	pub.err = errors.New("broker unavailable")
	f := newTestFetcher(FetcherConfig{
		Subjects: []SubjectConfig{{SubjectID: "tenant-a", SourceID: "prop-1"}},
	}, creds, source, pub, led)

	if err := f.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil error, want publish failure")
	}
	if led.entries[0].RecordsProcessed != 0 {
		t.Errorf("RecordsProcessed = %d, want 0", led.entries[0].RecordsProcessed)
	}
}

func TestFetcherRunCredentialLookupError(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	creds.err = errors.New("store down")
	f := newTestFetcher(FetcherConfig{
		Subjects: []SubjectConfig{{SubjectID: "tenant-a", SourceID: "prop-1"}},
	}, creds, source, pub, led)

	// A lookup error, unlike a missing token, fails the subject.
	if err := f.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil error, want credential lookup failure")
	}
	if len(source.requests) != 0 {
		t.Errorf("fetch attempts = %d, want 0", len(source.requests))
	}
}

func TestFetcherRunNoSubjects(t *testing.T) {
	creds, source, pub, led := fetchFixtures()
	f := newTestFetcher(FetcherConfig{}, creds, source, pub, led)

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %d, want 0", len(pub.published))
	}
	if len(led.entries) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(led.entries))
	}
}
