// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package sink

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sightline-io/sightline/internal/models"
)

// Key prefix for normalized record documents in BadgerDB.
const documentKeyPrefix = "record:"

// DocumentSink writes each normalized record as a JSON document under a
// store-generated document id. The whole batch is committed in a single
// atomic transaction: either every document lands or none do.
type DocumentSink struct {
	db *badger.DB
}

// NewDocumentSink creates a BadgerDB-backed document sink.
func NewDocumentSink(db *badger.DB) *DocumentSink {
	return &DocumentSink{db: db}
}

// OpenDocumentSink opens the BadgerDB at path and wraps it as a sink.
func OpenDocumentSink(path string) (*DocumentSink, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &DocumentSink{db: db}, nil
}

// Name implements Sink.
func (s *DocumentSink) Name() string { return DocumentName }

// Write implements Sink.
func (s *DocumentSink) Write(ctx context.Context, records []*models.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %s: %w", rec.InsertID, err)
			}

			key := []byte(documentKeyPrefix + uuid.New().String())
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set document: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("document batch commit: %w", err)
	}

	return len(records), nil
}

// Close releases the underlying BadgerDB.
func (s *DocumentSink) Close() error {
	return s.db.Close()
}
