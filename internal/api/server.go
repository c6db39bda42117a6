// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package api exposes the ops HTTP endpoint: health and Prometheus metrics.
// There is no data or token API; operators observe the pipeline through
// /metrics and the run ledger table.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports backing-store connectivity for the health check.
// Satisfied by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
	store      Pinger
	logger     zerolog.Logger
}

// Config holds ops server settings.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewServer builds the ops router and server.
func NewServer(cfg Config, store Pinger, logger *zerolog.Logger) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Server{
		store:  store,
		logger: logger.With().Str("component", "ops-api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Serve runs the HTTP server until the context is canceled.
// It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Ops endpoint listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Ops endpoint shutdown failed")
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "ops-api"
}

// handleHealthz reports liveness plus relational store connectivity.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
