// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/sightline-io/sightline/internal/models"
)

// InsertNormalizedBatch bulk-inserts normalized records in one batch.
// Conflicts on insert_id are skipped so a redelivered batch does not
// duplicate rows under the at-least-once commit boundary.
func (s *Store) InsertNormalizedBatch(ctx context.Context, records []*models.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "insert_id"}},
			DoNothing: true,
		}).
		Create(&records)
	if result.Error != nil {
		return 0, fmt.Errorf("insert normalized records: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}
