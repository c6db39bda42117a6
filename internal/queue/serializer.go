// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package queue

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/sightline-io/sightline/internal/models"
)

// Serializer handles report message encoding/decoding for queue payloads.
// Decoding validates against the canonical schema: a payload that parses but
// violates the schema is malformed input, not a best-effort record.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts a report message to JSON bytes.
func (s *Serializer) Marshal(msg *models.ReportMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate message: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to a report message, validating the schema.
func (s *Serializer) Unmarshal(data []byte) (*models.ReportMessage, error) {
	var msg models.ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}

	msg.EnsureSchemaVersion()
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate message: %w", err)
	}

	return &msg, nil
}
