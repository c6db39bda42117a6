// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sightline-io/sightline/internal/models"
)

// HTTPSourceConfig holds settings for the analytics source HTTP client.
type HTTPSourceConfig struct {
	// BaseURL is the report API root, e.g. https://analytics.example.com.
	BaseURL string

	// Timeout bounds a single report request. Default: 30s.
	Timeout time.Duration
}

// HTTPSource fetches tabular reports over HTTP with circuit breaker
// protection. The breaker shields the pipeline from a degraded source API:
// once it opens, fetches fail fast for the timeout window instead of
// stacking up slow requests.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests should exercise the underlying request path directly.
type HTTPSource struct {
	cfg    HTTPSourceConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker[*models.ReportTable]
	logger zerolog.Logger
}

// NewHTTPSource creates a report source client.
// Breaker configuration: max 3 requests half-open, 1 minute measurement
// window, 2 minute recovery timeout, opens at a 60% failure rate with at
// least 10 observed requests.
func NewHTTPSource(cfg HTTPSourceConfig, logger *zerolog.Logger) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	log := logger.With().Str("component", "report-source").Logger()

	cb := gobreaker.NewCircuitBreaker[*models.ReportTable](gobreaker.Settings{
		Name:        "report-source",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("Report source breaker state change")
		},
	})

	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb:     cb,
		logger: log,
	}
}

// reportRequestBody is the wire shape of a report query.
type reportRequestBody struct {
	SourceID   string   `json:"source_id"`
	Dimensions []string `json:"dimensions"`
	Metrics    []string `json:"metrics"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
}

// reportResponseBody is the wire shape of a report result.
type reportResponseBody struct {
	Rows []struct {
		DimensionValues []string `json:"dimension_values"`
		MetricValues    []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"metric_values"`
	} `json:"rows"`
}

// FetchReport implements Source. Breaker rejections surface as ordinary
// fetch errors; the worker's run ledger entry records them.
func (s *HTTPSource) FetchReport(ctx context.Context, creds *models.Credential, req Request) (*models.ReportTable, error) {
	table, err := s.cb.Execute(func() (*models.ReportTable, error) {
		return s.fetch(ctx, creds, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn().Err(err).Str("source_id", req.SourceID).Msg("Report fetch rejected by breaker")
	}
	return table, err
}

// fetch performs one report request without breaker protection.
func (s *HTTPSource) fetch(ctx context.Context, creds *models.Credential, req Request) (*models.ReportTable, error) {
	body, err := json.Marshal(reportRequestBody{
		SourceID:   req.SourceID,
		Dimensions: req.Dimensions,
		Metrics:    req.Metrics,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("encode report request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sources/%s/reports:run", s.cfg.BaseURL, req.SourceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("report request: status %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded reportResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode report response: %w", err)
	}

	table := &models.ReportTable{Rows: make([]models.RowGroup, 0, len(decoded.Rows))}
	for _, row := range decoded.Rows {
		group := models.RowGroup{
			Dimensions: row.DimensionValues,
			Metrics:    make([]models.MetricValue, 0, len(row.MetricValues)),
		}
		for _, mv := range row.MetricValues {
			group.Metrics = append(group.Metrics, models.MetricValue{Name: mv.Name, Value: mv.Value})
		}
		table.Rows = append(table.Rows, group)
	}
	return table, nil
}

// breakerStateString renders a breaker state for logs.
func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
