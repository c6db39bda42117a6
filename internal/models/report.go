// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package models defines the canonical record shapes that flow through the
// ingestion pipeline: queue messages, raw audit copies, normalized facts,
// and run ledger entries.
package models

import (
	"time"
)

// SchemaVersion is the current report message schema version.
// Increment this when making breaking changes to ReportMessage.
const SchemaVersion = 1

// MetricValue is a single named metric within a row-group. Values arrive as
// strings because upstream report APIs return untyped tabular cells.
type MetricValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RowGroup is one row of a tabular report: an ordered list of dimension
// values and an ordered list of metric name/value pairs.
type RowGroup struct {
	Dimensions []string      `json:"dimensions"`
	Metrics    []MetricValue `json:"metrics"`
}

// ReportMessage is one consumed unit of work from the queue. It is immutable
// once decoded and is discarded after normalization and raw persistence.
//
// A message with zero row-groups is valid (an empty report); a message that
// fails to decode or validate is dropped as malformed input.
type ReportMessage struct {
	SchemaVersion int        `json:"schema_version,omitempty"`
	SubjectID     string     `json:"subject_id"`
	SourceID      string     `json:"source_id"`
	GeneratedAt   time.Time  `json:"generated_at"`
	RowGroups     []RowGroup `json:"row_groups"`
}

// Validate checks required fields and returns an error if validation fails.
func (m *ReportMessage) Validate() error {
	if m.SubjectID == "" {
		return &ValidationError{Field: "subject_id", Message: "required"}
	}
	if m.SourceID == "" {
		return &ValidationError{Field: "source_id", Message: "required"}
	}
	if m.GeneratedAt.IsZero() {
		return &ValidationError{Field: "generated_at", Message: "required"}
	}
	return nil
}

// EnsureSchemaVersion sets the schema version if not already set.
// Call this when processing messages that may not carry a version.
func (m *ReportMessage) EnsureSchemaVersion() {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = SchemaVersion
	}
}

// ReportTable is the opaque tabular result of a report-source fetch.
// The fetch worker wraps it into a ReportMessage before publishing.
type ReportTable struct {
	Rows []RowGroup
}

// ValidationError describes a schema violation on a decoded message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}
