// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

package supervisor

import (
	"context"
	"errors"
	"time"
)

// ErrBrokerStopped signals that the embedded broker exited unexpectedly.
var ErrBrokerStopped = errors.New("embedded broker stopped")

// BrokerRunner matches the embedded queue server lifecycle.
// Satisfied by *queue.EmbeddedServer.
type BrokerRunner interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// BrokerService supervises an already-started embedded broker. The broker
// starts during process bootstrap (consumers need it before the tree runs),
// so Serve only watches health and handles shutdown.
type BrokerService struct {
	broker          BrokerRunner
	shutdownTimeout time.Duration
	checkInterval   time.Duration
}

// NewBrokerService wraps an embedded broker as a supervised service.
func NewBrokerService(broker BrokerRunner) *BrokerService {
	return &BrokerService{
		broker:          broker,
		shutdownTimeout: 10 * time.Second,
		checkInterval:   5 * time.Second,
	}
}

// Serve implements suture.Service. It returns an error if the broker stops
// running, which the supervisor surfaces through its event hook.
func (s *BrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				return ErrBrokerStopped
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *BrokerService) String() string {
	return "embedded-broker"
}
