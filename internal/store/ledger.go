// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package store

import (
	"context"
	"fmt"

	"github.com/sightline-io/sightline/internal/models"
)

// CreateRunLedgerEntry persists one run ledger row.
func (s *Store) CreateRunLedgerEntry(ctx context.Context, entry *models.RunLedgerEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert run ledger entry: %w", err)
	}
	return nil
}
