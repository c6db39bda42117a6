// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sightline-io/sightline/internal/metrics"
	"github.com/sightline-io/sightline/internal/models"
)

// Message metadata keys set by the report-fetch workers.
const (
	metadataContentType = "content_type"
	metadataTimestamp   = "timestamp"
	metadataSubjectID   = "subject_id"

	contentTypeJSON = "application/json"
)

// Publisher wraps a Watermill JetStream publisher with circuit breaker
// protection. Published messages carry a message id header so the stream's
// duplicate window deduplicates retried publishes (idempotent producer).
type Publisher struct {
	publisher      message.Publisher
	serializer     *Serializer
	config         PublisherConfig
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher creates a resilient Watermill NATS publisher.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Publisher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is pre-created by StreamManager
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:  pub,
		serializer: NewSerializer(),
		config:     cfg,
		logger:     logger,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish sends a message to the configured topic with circuit breaker
// protection. The message UUID doubles as the Nats-Msg-Id for deduplication.
func (p *Publisher) Publish(ctx context.Context, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	msg.SetContext(ctx)

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(p.config.Topic, msg)
		})
	} else {
		err = p.publisher.Publish(p.config.Topic, msg)
	}

	if err == nil {
		metrics.RecordQueuePublish()
	}

	return err
}

// PublishReport serializes and publishes a report message, keyed by subject
// id with content-type and timestamp headers.
func (p *Publisher) PublishReport(ctx context.Context, report *models.ReportMessage) error {
	data, err := p.serializer.Marshal(report)
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set(metadataSubjectID, report.SubjectID)
	msg.Metadata.Set(metadataContentType, contentTypeJSON)
	msg.Metadata.Set(metadataTimestamp, report.GeneratedAt.UTC().Format(time.RFC3339))

	return p.Publish(ctx, msg)
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
