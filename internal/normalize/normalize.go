// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package normalize maps heterogeneous report rows into the canonical
// NormalizedRecord shape. The mapping is a pure function with no I/O so it
// can be tested deterministically.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-io/sightline/internal/models"
)

// Metric name substrings matched case-insensitively against incoming metric
// names. First metric matching each substring wins when multiples match.
const (
	activeUsersSubstring = "activeuser"
	sessionsSubstring    = "session"
)

// Normalize produces exactly one NormalizedRecord per row-group of each
// message, preserving input order (message order, then row-group order).
//
// Mapping rules:
//   - Dimension: first dimension value, or "Unknown" when the list is empty.
//   - ActiveUsers/Sessions: first metric whose name contains the matching
//     substring (case-insensitive); unmatched metrics are ignored and
//     unparsable values default to zero.
//   - EventDate: date-only derivation from the message generation timestamp.
//
// Each record is assigned a fresh insert id so downstream retried writes
// deduplicate at the warehouse.
func Normalize(msgs []*models.ReportMessage, processor string, now time.Time) []*models.NormalizedRecord {
	var records []*models.NormalizedRecord

	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		eventDate := truncateToDate(msg.GeneratedAt)

		for _, group := range msg.RowGroups {
			activeUsers, sessions := extractMeasures(group.Metrics)

			records = append(records, &models.NormalizedRecord{
				InsertID:    uuid.New().String(),
				SubjectID:   msg.SubjectID,
				SourceID:    msg.SourceID,
				EventDate:   eventDate,
				Dimension:   firstDimension(group.Dimensions),
				ActiveUsers: activeUsers,
				Sessions:    sessions,
				Processor:   processor,
				ProcessedAt: now,
			})
		}
	}

	return records
}

// firstDimension returns the first dimension value or the Unknown sentinel.
func firstDimension(dims []string) string {
	if len(dims) == 0 || dims[0] == "" {
		return models.UnknownDimension
	}
	return dims[0]
}

// extractMeasures scans metrics in order and returns the active-users and
// sessions counts. Extraction is order-independent across the two measures:
// the first name-match for each wins regardless of position.
func extractMeasures(metrics []models.MetricValue) (activeUsers, sessions int64) {
	var haveActive, haveSessions bool

	for _, m := range metrics {
		name := strings.ToLower(m.Name)
		if !haveActive && strings.Contains(name, activeUsersSubstring) {
			activeUsers = parseCount(m.Value)
			haveActive = true
		}
		if !haveSessions && strings.Contains(name, sessionsSubstring) {
			sessions = parseCount(m.Value)
			haveSessions = true
		}
	}
	return activeUsers, sessions
}

// parseCount coerces a metric value string to an integer, defaulting to zero
// on parse failure.
func parseCount(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// truncateToDate strips the time-of-day component, keeping UTC date.
func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
