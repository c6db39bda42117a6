// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager handles JetStream stream lifecycle for the reports stream.
type StreamManager struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	config StreamConfig
}

// NewStreamManager creates a stream manager with the given config.
func NewStreamManager(nc *nats.Conn, cfg StreamConfig) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &StreamManager{
		js:     js,
		nc:     nc,
		config: cfg,
	}, nil
}

// EnsureStream creates or updates the stream configuration.
// The duplicate window backs the idempotent-producer setting: retried
// publishes with the same message id inside the window are dropped.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:       m.config.Name,
		Subjects:   m.config.Subjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     m.config.MaxAge,
		MaxBytes:   m.config.MaxBytes,
		MaxMsgs:    m.config.MaxMsgs,
		Duplicates: m.config.DuplicateWindow,
		Replicas:   m.config.Replicas,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err := m.js.Stream(ctx, m.config.Name)
	if err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream: %w", err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return stream, nil
}

// GetStreamInfo returns current stream state.
func (m *StreamManager) GetStreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.config.Name)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}
