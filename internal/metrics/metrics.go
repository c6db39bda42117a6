// Sightline - Multi-Destination Analytics Ingestion Pipeline
// Copyright 2026 Sightline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sightline-io/sightline

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline: run outcomes, consumed/normalized record counts, per-sink write
// results, and queue publishes. Metrics are exposed on the ops endpoint at
// /metrics in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"processor", "status"}, // status: success, error
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"processor"},
	)

	// Record flow metrics
	RecordsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_consumed_total",
			Help: "Total queue records accepted into the pipeline",
		},
		[]string{"processor"},
	)

	RecordsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_records_malformed_total",
			Help: "Total queue payloads dropped as undeserializable",
		},
	)

	RecordsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_normalized_total",
			Help: "Total normalized records produced",
		},
		[]string{"processor"},
	)

	// Sink metrics
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_sink_writes_total",
			Help: "Total records written per sink",
		},
		[]string{"sink"},
	)

	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_sink_failures_total",
			Help: "Total sink write failures",
		},
		[]string{"sink"},
	)

	// Queue metrics
	QueuePublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_publishes_total",
			Help: "Total messages published to the reports stream",
		},
	)

	// Report fetch metrics
	ReportFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_fetches_total",
			Help: "Total report-source fetches",
		},
		[]string{"status"}, // status: success, error, skipped
	)
)

// RecordRun records one pipeline run outcome with its duration.
func RecordRun(processor string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RunsTotal.WithLabelValues(processor, status).Inc()
	RunDuration.WithLabelValues(processor).Observe(elapsed.Seconds())
}

// RecordQueuePublish records one successful queue publish.
func RecordQueuePublish() {
	QueuePublishes.Inc()
}

// RecordSinkWrite records a sink write outcome.
func RecordSinkWrite(sink string, count int, err error) {
	if err != nil {
		SinkFailures.WithLabelValues(sink).Inc()
		return
	}
	SinkWrites.WithLabelValues(sink).Add(float64(count))
}
