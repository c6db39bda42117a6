// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package store implements the relational store: raw audit records,
// normalized records, the run ledger, and the read-only credential lookup.
//
// Each worker owns its own *Store (and thus its own connection pool); the
// store is shared within a run but never across concurrent workers.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sightline-io/sightline/internal/models"
)

// Config holds relational store configuration.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// MaxOpenConns caps the connection pool size.
	MaxOpenConns int

	// ConnMaxLifetime recycles connections to avoid stale sessions.
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns production defaults for the relational store.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    8,
		ConnMaxLifetime: time.Hour,
	}
}

// Store wraps the GORM handle for the relational destination.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open connects to Postgres and migrates the pipeline tables.
func Open(cfg Config, logger *zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&models.RawRecord{},
		&models.NormalizedRecord{},
		&models.RunLedgerEntry{},
		&models.Credential{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// NewWithDB wraps an existing GORM handle. Used by tests.
func NewWithDB(db *gorm.DB, logger *zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
