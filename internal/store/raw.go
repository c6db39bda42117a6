// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sightline-io/sightline/internal/models"
)

// PersistRaw appends one audit row per consumed message, re-encoding the
// row-group payload as JSON text and tagging it with the provenance of the
// pipeline path that wrote it.
//
// Failure here is fatal to the current run: the rest of the pipeline must
// not proceed on unaudited data.
func (s *Store) PersistRaw(ctx context.Context, msgs []*models.ReportMessage, provenance string) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]models.RawRecord, 0, len(msgs))
	for _, msg := range msgs {
		payload, err := json.Marshal(msg.RowGroups)
		if err != nil {
			return 0, fmt.Errorf("encode raw payload for subject %s: %w", msg.SubjectID, err)
		}

		rows = append(rows, models.RawRecord{
			SubjectID:   msg.SubjectID,
			SourceID:    msg.SourceID,
			GeneratedAt: msg.GeneratedAt,
			Payload:     string(payload),
			Provenance:  provenance,
			StoredAt:    now,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("insert raw records: %w", err)
	}

	s.logger.Debug().Int("count", len(rows)).Str("provenance", provenance).Msg("Raw records persisted")
	return len(rows), nil
}
