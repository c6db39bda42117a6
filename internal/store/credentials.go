// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sightline-io/sightline/internal/models"
	"github.com/sightline-io/sightline/internal/report"
)

// Credentials looks up bearer credentials for a subject in the token lookup
// table maintained by the external Token & Credential Service.
// Returns report.ErrCredentialsNotFound when the subject has no row; the
// fetch worker treats that as "skip this subject", not an error.
func (s *Store) Credentials(ctx context.Context, subjectID string) (*models.Credential, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, report.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credentials for %s: %w", subjectID, err)
	}
	return &cred, nil
}
