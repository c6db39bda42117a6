// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/sightline-io/sightline/internal/models"
)

// warehouseSchema is the fixed column layout of the warehouse table.
// insert_id is the client-generated idempotency key; event_date drives
// date-based pruning on analytical scans.
const warehouseSchema = `
CREATE TABLE IF NOT EXISTS %s (
    insert_id    VARCHAR PRIMARY KEY,
    subject_id   VARCHAR NOT NULL,
    source_id    VARCHAR NOT NULL,
    event_date   DATE NOT NULL,
    dimension    VARCHAR NOT NULL,
    active_users BIGINT NOT NULL,
    sessions     BIGINT NOT NULL,
    processor    VARCHAR NOT NULL,
    processed_at TIMESTAMP NOT NULL
)`

const warehouseInsert = `
INSERT OR IGNORE INTO %s
    (insert_id, subject_id, source_id, event_date, dimension, active_users, sessions, processor, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// WarehouseConfig holds columnar warehouse settings.
type WarehouseConfig struct {
	// Path is the DuckDB database file.
	Path string

	// Table is the destination table name.
	Table string
}

// DefaultWarehouseConfig returns warehouse defaults.
func DefaultWarehouseConfig() WarehouseConfig {
	return WarehouseConfig{
		Path:  "/data/sightline.duckdb",
		Table: "normalized_records",
	}
}

// WarehouseSink stream-inserts normalized records into a DuckDB table.
//
// The table is created lazily on first use. Each row carries its insert id
// as primary key and inserts use INSERT OR IGNORE, so a retried batch does
// not produce duplicate rows. A row that fails to bind is logged and
// skipped; it never fails the whole batch.
type WarehouseSink struct {
	db     *sql.DB
	config WarehouseConfig
	logger zerolog.Logger

	initMu  sync.Mutex
	created bool
}

// NewWarehouseSink opens the DuckDB database. Schema creation is deferred
// until the first write.
func NewWarehouseSink(cfg WarehouseConfig, logger *zerolog.Logger) (*WarehouseSink, error) {
	if cfg.Table == "" {
		cfg.Table = "normalized_records"
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", cfg.Path, err)
	}

	return &WarehouseSink{
		db:     db,
		config: cfg,
		logger: logger.With().Str("component", "warehouse-sink").Logger(),
	}, nil
}

// Name implements Sink.
func (s *WarehouseSink) Name() string { return WarehouseName }

// Write implements Sink.
func (s *WarehouseSink) Write(ctx context.Context, records []*models.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	stmt, err := s.db.PrepareContext(ctx, fmt.Sprintf(warehouseInsert, s.config.Table))
	if err != nil {
		return 0, fmt.Errorf("prepare warehouse insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.InsertID,
			rec.SubjectID,
			rec.SourceID,
			rec.EventDate,
			rec.Dimension,
			rec.ActiveUsers,
			rec.Sessions,
			rec.Processor,
			rec.ProcessedAt,
		)
		if err != nil {
			// Skip-invalid policy: a bad row must not sink the batch.
			s.logger.Warn().
				Err(err).
				Str("insert_id", rec.InsertID).
				Msg("Skipping warehouse row")
			continue
		}
		// Rows swallowed by INSERT OR IGNORE report zero affected rows
		// and must not count as stored, or retried batches overreport.
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			stored++
			continue
		}
		stored += int(affected)
	}

	return stored, nil
}

// ensureTable lazily creates the warehouse table on first use. Only success
// is latched; a failed attempt is retried on the next write so a transient
// outage does not disable the sink for the life of the process.
func (s *WarehouseSink) ensureTable(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.created {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(warehouseSchema, s.config.Table)); err != nil {
		return fmt.Errorf("create warehouse table %s: %w", s.config.Table, err)
	}

	s.created = true
	return nil
}

// Close releases the DuckDB handle.
func (s *WarehouseSink) Close() error {
	return s.db.Close()
}
