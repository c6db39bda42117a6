// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sightline-io/sightline/internal/metrics"
	"github.com/sightline-io/sightline/internal/models"
	"github.com/sightline-io/sightline/internal/report"
)

// ReportPublisher publishes report messages onto the queue.
// Satisfied by *queue.Publisher.
type ReportPublisher interface {
	PublishReport(ctx context.Context, msg *models.ReportMessage) error
}

// SubjectConfig pairs a subject with the analytics source it reads from.
type SubjectConfig struct {
	SubjectID string
	SourceID  string
}

// FetcherConfig holds one report-fetch worker's settings.
type FetcherConfig struct {
	// Name is the worker variant tag for ledger entries and logs.
	Name string

	// Subjects lists the subject/source pairs fetched each run.
	Subjects []SubjectConfig

	// Dimensions and Metrics describe the report request.
	Dimensions []string
	Metrics    []string

	// DaysBack sets the report date range: [today-DaysBack, today].
	DaysBack int

	// FetchesPerSecond rate-limits calls against the source API.
	FetchesPerSecond float64
}

// Fetcher pulls tabular reports from the analytics source for each
// configured subject and publishes them as queue messages for the
// processing workers. Subjects without stored credentials are skipped for
// the run; fetch or publish failures are aggregated so one bad subject does
// not block the rest.
type Fetcher struct {
	cfg         FetcherConfig
	credentials report.CredentialSource
	source      report.Source
	publisher   ReportPublisher
	ledger      RunRecorder
	limiter     *rate.Limiter
	logger      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewFetcher wires a report-fetch worker.
func NewFetcher(
	cfg FetcherConfig,
	credentials report.CredentialSource,
	source report.Source,
	publisher ReportPublisher,
	ledger RunRecorder,
	logger *zerolog.Logger,
) *Fetcher {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 1
	}
	if cfg.FetchesPerSecond <= 0 {
		cfg.FetchesPerSecond = 1
	}

	return &Fetcher{
		cfg:         cfg,
		credentials: credentials,
		source:      source,
		publisher:   publisher,
		ledger:      ledger,
		limiter:     rate.NewLimiter(rate.Limit(cfg.FetchesPerSecond), 1),
		logger:      logger.With().Str("component", "fetcher").Str("worker", cfg.Name).Logger(),
		now:         time.Now,
	}
}

// Run executes one fetch run across all configured subjects.
func (f *Fetcher) Run(ctx context.Context) (err error) {
	start := f.now()
	entry := f.ledger.Begin(f.cfg.Name, "", "")

	defer func() {
		if err != nil {
			entry.ErrorMessage = err.Error()
		}
		finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		f.ledger.Finish(finishCtx, entry)
		metrics.RecordRun(f.cfg.Name, err, f.now().Sub(start))
	}()

	var errs []error
	for _, subject := range f.cfg.Subjects {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		published, fetchErr := f.fetchSubject(ctx, subject)
		if fetchErr != nil {
			errs = append(errs, fmt.Errorf("subject %s: %w", subject.SubjectID, fetchErr))
			continue
		}
		entry.RecordsProcessed += published
	}

	err = errors.Join(errs...)
	return err
}

// fetchSubject fetches and publishes one subject's report. Returns the
// number of messages published (zero when the subject is skipped).
func (f *Fetcher) fetchSubject(ctx context.Context, subject SubjectConfig) (int, error) {
	creds, err := f.credentials.Credentials(ctx, subject.SubjectID)
	if errors.Is(err, report.ErrCredentialsNotFound) {
		// Not an error: the subject simply has no tokens yet.
		f.logger.Info().Str("subject_id", subject.SubjectID).Msg("No credentials, skipping subject")
		metrics.ReportFetches.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	if err != nil {
		metrics.ReportFetches.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("credentials: %w", err)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	now := f.now().UTC()
	req := report.Request{
		SourceID:   subject.SourceID,
		Dimensions: f.cfg.Dimensions,
		Metrics:    f.cfg.Metrics,
		StartDate:  now.AddDate(0, 0, -f.cfg.DaysBack).Format("2006-01-02"),
		EndDate:    now.Format("2006-01-02"),
	}

	table, err := f.source.FetchReport(ctx, creds, req)
	if err != nil {
		metrics.ReportFetches.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("fetch report: %w", err)
	}
	metrics.ReportFetches.WithLabelValues("success").Inc()

	msg := &models.ReportMessage{
		SchemaVersion: models.SchemaVersion,
		SubjectID:     subject.SubjectID,
		SourceID:      subject.SourceID,
		GeneratedAt:   now,
		RowGroups:     table.Rows,
	}

	if err := f.publisher.PublishReport(ctx, msg); err != nil {
		return 0, fmt.Errorf("publish report: %w", err)
	}

	f.logger.Debug().
		Str("subject_id", subject.SubjectID).
		Str("source_id", subject.SourceID).
		Int("row_groups", len(table.Rows)).
		Msg("Report published")
	return 1, nil
}
