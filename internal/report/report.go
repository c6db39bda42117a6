// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package report defines the external collaborator boundaries of the fetch
// workers: the Token & Credential Service and the analytics report source.
// Both are opaque to the pipeline; implementations live at the edges.
package report

import (
	"context"
	"errors"

	"github.com/sightline-io/sightline/internal/models"
)

// ErrCredentialsNotFound signals that a subject has no stored credentials.
// The fetch worker skips the subject for the run instead of failing.
var ErrCredentialsNotFound = errors.New("credentials not found")

// CredentialSource provides bearer credentials for a subject.
type CredentialSource interface {
	Credentials(ctx context.Context, subjectID string) (*models.Credential, error)
}

// Request describes one report fetch: which property to query, over which
// dimensions, metrics, and date range.
type Request struct {
	SourceID   string
	Dimensions []string
	Metrics    []string
	StartDate  string
	EndDate    string
}

// Source fetches a tabular report from an analytics source API.
// Transport and auth errors propagate as a single failure for the fetch.
type Source interface {
	FetchReport(ctx context.Context, creds *models.Credential, req Request) (*models.ReportTable, error)
}
