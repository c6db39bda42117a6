// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package models

import (
	"time"
)

// UnknownDimension is substituted when a row-group carries no dimensions.
const UnknownDimension = "Unknown"

// Ledger sentinels for batch-wide runs that span many subjects.
const (
	SystemSubject   = "system"
	MultipleSources = "multiple"
)

// RawRecord is the write-once audit copy of a consumed ReportMessage,
// persisted before normalization is trusted. Payload holds the original
// row-groups re-encoded as JSON text for replay.
type RawRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SubjectID   string    `gorm:"index;size:128;not null" json:"subject_id"`
	SourceID    string    `gorm:"size:128;not null" json:"source_id"`
	GeneratedAt time.Time `gorm:"not null" json:"generated_at"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	Provenance  string    `gorm:"size:128;not null" json:"provenance"`
	StoredAt    time.Time `gorm:"not null" json:"stored_at"`
}

// TableName overrides GORM's pluralization.
func (RawRecord) TableName() string { return "raw_records" }

// NormalizedRecord is the canonical analytics fact. One record is produced
// per row-group of a ReportMessage.
//
// InsertID is a client-generated idempotency key attached before the first
// fan-out attempt so retried warehouse inserts deduplicate.
type NormalizedRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InsertID    string    `gorm:"uniqueIndex;size:36;not null" json:"insert_id"`
	SubjectID   string    `gorm:"index;size:128;not null" json:"subject_id"`
	SourceID    string    `gorm:"size:128;not null" json:"source_id"`
	EventDate   time.Time `gorm:"type:date;index;not null" json:"event_date"`
	Dimension   string    `gorm:"size:256;not null" json:"dimension"`
	ActiveUsers int64     `gorm:"not null" json:"active_users"`
	Sessions    int64     `gorm:"not null" json:"sessions"`
	Processor   string    `gorm:"size:64;not null" json:"processor"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

// TableName overrides GORM's pluralization.
func (NormalizedRecord) TableName() string { return "normalized_records" }

// RunLedgerEntry is the per-run audit row. It is created when a run begins,
// mutated as stages complete, and persisted exactly once when the run ends,
// regardless of outcome.
type RunLedgerEntry struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SubjectID         string    `gorm:"size:128;not null" json:"subject_id"`
	SourceID          string    `gorm:"size:128;not null" json:"source_id"`
	ProcessedAt       time.Time `gorm:"index;not null" json:"processed_at"`
	RecordsProcessed  int       `gorm:"not null" json:"records_processed"`
	RecordsNormalized int       `gorm:"not null" json:"records_normalized"`
	RelationalStored  int       `gorm:"not null" json:"relational_stored"`
	DocumentStored    int       `gorm:"not null" json:"document_stored"`
	WarehouseStored   int       `gorm:"not null" json:"warehouse_stored"`
	ErrorMessage      string    `gorm:"type:text" json:"error_message"`
	Processor         string    `gorm:"size:64;not null" json:"processor"`
}

// TableName overrides GORM's pluralization.
func (RunLedgerEntry) TableName() string { return "run_ledger" }

// Credential is a row of the token lookup table maintained by the external
// Token & Credential Service. The pipeline only reads it.
type Credential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubjectID    string    `gorm:"uniqueIndex;size:128;not null" json:"subject_id"`
	AccessToken  string    `gorm:"type:text;not null" json:"access_token"`
	RefreshToken string    `gorm:"type:text" json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName overrides GORM's pluralization.
func (Credential) TableName() string { return "credentials" }
