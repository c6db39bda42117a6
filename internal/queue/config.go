// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package queue

import (
	"time"
)

// SubscriberConfig holds JetStream consumer configuration.
type SubscriberConfig struct {
	// URL is the NATS server connection URL.
	URL string

	// Topic is the subject the consumer subscribes to.
	Topic string

	// StreamName binds the consumer to a pre-provisioned stream.
	StreamName string

	// DurableName is the durable consumer name for offset tracking.
	DurableName string

	// QueueGroup is the consumer group for load balancing.
	QueueGroup string

	// MaxDeliver caps redelivery attempts per message.
	MaxDeliver int

	// MaxAckPending caps unacknowledged in-flight messages.
	MaxAckPending int

	// AckWaitTimeout is how long the server waits for an ack before
	// redelivering.
	AckWaitTimeout time.Duration

	// CloseTimeout bounds subscriber shutdown.
	CloseTimeout time.Duration

	// MaxReconnects and ReconnectWait govern NATS connection recovery.
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultSubscriberConfig returns production defaults for the consumer.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		URL:            "nats://127.0.0.1:4222",
		Topic:          "reports.batched",
		StreamName:     "REPORTS",
		DurableName:    "report-processor",
		QueueGroup:     "processors",
		MaxDeliver:     5,
		MaxAckPending:  1024,
		AckWaitTimeout: 30 * time.Second,
		CloseTimeout:   30 * time.Second,
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
	}
}

// PublisherConfig holds JetStream publisher configuration.
type PublisherConfig struct {
	// URL is the NATS server connection URL.
	URL string

	// Topic is the subject report messages are published to.
	Topic string

	// EnableTrackMsgID enables server-side deduplication by message id,
	// the idempotent-producer setting.
	EnableTrackMsgID bool

	// MaxReconnects, ReconnectWait, and ReconnectBuffer govern NATS
	// connection recovery.
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultPublisherConfig returns production defaults for the publisher.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:              "nats://127.0.0.1:4222",
		Topic:            "reports.batched",
		EnableTrackMsgID: true,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
	}
}

// StreamConfig holds JetStream stream provisioning settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns defaults for the reports stream.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "REPORTS",
		Subjects:        []string{"reports.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        10 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,
		JetStreamMaxStore: 10 << 30,
	}
}
