// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package config loads layered configuration for Sightline: built-in
// defaults, an optional YAML file, then environment variables, with
// validation on the final result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Sightline process.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Queue      QueueConfig      `koanf:"queue"`
	Relational RelationalConfig `koanf:"relational"`
	Document   DocumentConfig   `koanf:"document"`
	Warehouse  WarehouseConfig  `koanf:"warehouse"`
	Processor  ProcessorConfig  `koanf:"processor"`
	Fetcher    FetcherConfig    `koanf:"fetcher"`
	Ops        OpsConfig        `koanf:"ops"`
}

// LoggingConfig mirrors the logging package configuration.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// QueueConfig holds NATS JetStream settings shared by consumer, publisher,
// and the optional embedded server.
type QueueConfig struct {
	URL            string        `koanf:"url" validate:"required"`
	Topic          string        `koanf:"topic" validate:"required"`
	StreamName     string        `koanf:"stream_name" validate:"required"`
	DurableName    string        `koanf:"durable_name" validate:"required"`
	QueueGroup     string        `koanf:"queue_group"`
	MaxDeliver     int           `koanf:"max_deliver"`
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`

	// Embedded server (standalone deployments)
	Embedded          bool   `koanf:"embedded"`
	Host              string `koanf:"host"`
	Port              int    `koanf:"port"`
	StoreDir          string `koanf:"store_dir"`
	JetStreamMaxMem   int64  `koanf:"jetstream_max_mem"`
	JetStreamMaxStore int64  `koanf:"jetstream_max_store"`

	// Stream retention
	RetentionDays   int           `koanf:"retention_days"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
}

// RelationalConfig holds the required relational store settings.
type RelationalConfig struct {
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DocumentConfig holds the optional document sink settings.
type DocumentConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// WarehouseConfig holds the optional columnar warehouse settings.
type WarehouseConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	Table   string `koanf:"table"`
}

// ProcessorConfig holds the queue-processing worker settings.
type ProcessorConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Name           string        `koanf:"name" validate:"required"`
	CronExpression string        `koanf:"cron_expression"`
	Timezone       string        `koanf:"timezone"`
	Interval       time.Duration `koanf:"interval"`
	ErrorCooldown  time.Duration `koanf:"error_cooldown"`
	BatchSize      int           `koanf:"batch_size" validate:"gt=0"`
	PollBudget     time.Duration `koanf:"poll_budget"`
}

// FetcherConfig holds the report-fetch worker settings.
type FetcherConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Name           string        `koanf:"name" validate:"required"`
	CronExpression string        `koanf:"cron_expression"`
	Timezone       string        `koanf:"timezone"`
	Interval       time.Duration `koanf:"interval"`
	ErrorCooldown  time.Duration `koanf:"error_cooldown"`

	// SourceURL is the analytics report API root.
	SourceURL     string        `koanf:"source_url"`
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// Subjects are "subject_id:source_id" pairs.
	Subjects   []string `koanf:"subjects"`
	Dimensions []string `koanf:"dimensions"`
	Metrics    []string `koanf:"metrics"`

	DaysBack         int     `koanf:"days_back"`
	FetchesPerSecond float64 `koanf:"fetches_per_second"`
}

// OpsConfig holds the ops HTTP endpoint settings (healthz, metrics).
type OpsConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// defaultConfig returns a Config with all sensible default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Queue: QueueConfig{
			URL:               "nats://127.0.0.1:4222",
			Topic:             "reports.batched",
			StreamName:        "REPORTS",
			DurableName:       "report-processor",
			QueueGroup:        "processors",
			MaxDeliver:        5,
			AckWaitTimeout:    30 * time.Second,
			Embedded:          true,
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          "/data/nats/jetstream",
			JetStreamMaxMem:   1 << 30,  // 1GB
			JetStreamMaxStore: 10 << 30, // 10GB
			RetentionDays:     7,
			DuplicateWindow:   2 * time.Minute,
		},
		Relational: RelationalConfig{
			DSN:             "",
			MaxOpenConns:    8,
			ConnMaxLifetime: time.Hour,
		},
		Document: DocumentConfig{
			Enabled: false,
			Path:    "/data/documents",
		},
		Warehouse: WarehouseConfig{
			Enabled: false,
			Path:    "/data/sightline.duckdb",
			Table:   "normalized_records",
		},
		Processor: ProcessorConfig{
			Enabled:        true,
			Name:           "queue-processor",
			CronExpression: "",
			Interval:       5 * time.Minute,
			ErrorCooldown:  5 * time.Minute,
			BatchSize:      100,
			PollBudget:     30 * time.Second,
		},
		Fetcher: FetcherConfig{
			Enabled:          false,
			Name:             "report-fetcher",
			CronExpression:   "",
			Interval:         time.Hour,
			ErrorCooldown:    5 * time.Minute,
			SourceURL:        "",
			SourceTimeout:    30 * time.Second,
			Subjects:         nil,
			Dimensions:       []string{"country"},
			Metrics:          []string{"activeUsers", "sessions"},
			DaysBack:         1,
			FetchesPerSecond: 1,
		},
		Ops: OpsConfig{
			Host:    "0.0.0.0",
			Port:    8787,
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, pair := range c.Fetcher.Subjects {
		if !strings.Contains(pair, ":") {
			return fmt.Errorf("invalid fetcher subject %q: want subject_id:source_id", pair)
		}
	}

	if c.Fetcher.Enabled && len(c.Fetcher.Subjects) == 0 {
		return fmt.Errorf("fetcher enabled with no subjects configured")
	}

	if c.Fetcher.Enabled && c.Fetcher.SourceURL == "" {
		return fmt.Errorf("fetcher enabled with no source_url configured")
	}

	return nil
}

// SplitSubjectPair splits a "subject_id:source_id" pair. Validation has
// already guaranteed the separator is present.
func SplitSubjectPair(pair string) (subjectID, sourceID string) {
	subjectID, sourceID, _ = strings.Cut(pair, ":")
	return subjectID, sourceID
}
