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
	natsgo "github.com/nats-io/nats.go"

	"github.com/sightline-io/sightline/internal/metrics"
	"github.com/sightline-io/sightline/internal/models"
)

// ConsumedRecord pairs a decoded report message with its acknowledgment
// handle. The pipeline acks only after raw persistence succeeds; until then
// the message remains pending on the durable consumer.
type ConsumedRecord struct {
	Message *models.ReportMessage
	msg     *message.Message
}

// NewConsumedRecord pairs a decoded report with its queue message.
func NewConsumedRecord(report *models.ReportMessage, msg *message.Message) *ConsumedRecord {
	return &ConsumedRecord{Message: report, msg: msg}
}

// Ack acknowledges the underlying queue message.
func (r *ConsumedRecord) Ack() {
	if r.msg != nil {
		r.msg.Ack()
	}
}

// Nack negatively acknowledges the underlying queue message so it is
// redelivered on a later run.
func (r *ConsumedRecord) Nack() {
	if r.msg != nil {
		r.msg.Nack()
	}
}

// Consumer pulls batches of report messages from a durable JetStream
// subscription.
//
// Commit boundary: messages are NOT acknowledged inside Consume. Malformed
// payloads are acked immediately (poison skip); well-formed records carry
// their ack handle out to the caller, which acks after the batch is durably
// persisted. A crash before that point causes redelivery, so the pipeline is
// at-least-once and downstream sinks rely on insert-id deduplication.
type Consumer struct {
	subscriber message.Subscriber
	serializer *Serializer
	config     SubscriberConfig
	logger     watermill.LoggerAdapter

	mu       sync.Mutex
	messages <-chan *message.Message
}

// NewConsumer creates a durable JetStream consumer.
// The consumer starts from the earliest available message and commits
// offsets manually, per message.
func NewConsumer(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*Consumer, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Consumer disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Consumer reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		// Earliest offset: consume everything still retained by the stream.
		natsgo.DeliverAll(),
	}

	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1, // Single puller preserves batch ordering
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Consumer{
		subscriber: sub,
		serializer: NewSerializer(),
		config:     cfg,
		logger:     logger,
	}, nil
}

// Consume pulls messages until maxCount records have been accepted, the time
// budget elapses, or the subscription channel closes, whichever first.
//
// Undeserializable payloads are logged, acked, and skipped; they never fail
// the batch.
func (c *Consumer) Consume(ctx context.Context, maxCount int, budget time.Duration) ([]*ConsumedRecord, error) {
	messages, err := c.subscription(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.NewTimer(budget)
	defer deadline.Stop()

	var records []*ConsumedRecord
	for len(records) < maxCount {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		case <-deadline.C:
			return records, nil
		case msg, ok := <-messages:
			if !ok {
				return records, nil
			}

			report, err := c.serializer.Unmarshal(msg.Payload)
			if err != nil {
				// Poison message: skip, don't retry.
				c.logger.Error("Dropping malformed message", err, watermill.LogFields{
					"message_uuid": msg.UUID,
				})
				metrics.RecordsMalformed.Inc()
				msg.Ack()
				continue
			}

			records = append(records, &ConsumedRecord{Message: report, msg: msg})
		}
	}

	return records, nil
}

// subscription lazily opens the topic subscription on first use.
func (c *Consumer) subscription(ctx context.Context) (<-chan *message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.messages != nil {
		return c.messages, nil
	}

	messages, err := c.subscriber.Subscribe(ctx, c.config.Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", c.config.Topic, err)
	}

	c.messages = messages
	return messages, nil
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	return c.subscriber.Close()
}
