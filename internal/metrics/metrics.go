// Tabula - Turn-Based Multiplayer Game Server
// Copyright 2026 Tabula Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tabula-srv/tabula

// Package metrics provides Prometheus instrumentation for:
//   - API endpoint latency and throughput
//   - Websocket connections, delivered and dropped events
//   - Database query performance (DuckDB)
//   - Disconnect cleanup outcomes
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Websocket Metrics
	WSOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_open_connections",
			Help: "Current number of open websocket connections",
		},
	)

	WSEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_delivered_total",
			Help: "Total number of events enqueued to websocket senders",
		},
		[]string{"type"},
	)

	WSEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dropped_total",
			Help: "Total number of events dropped because a sender queue was full or closed",
		},
		[]string{"type"},
	)

	WSHeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_heartbeat_timeouts_total",
			Help: "Total number of connections closed due to missed heartbeats",
		},
	)

	WSInvalidMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_invalid_messages_total",
			Help: "Total number of invalid inbound websocket messages",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Cleanup Metrics
	CleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disconnect_cleanup_runs_total",
			Help: "Total number of disconnect cleanup transactions by outcome",
		},
		[]string{"outcome"}, // "committed", "failed"
	)

	CleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disconnect_cleanup_duration_seconds",
			Help:    "Duration of disconnect cleanup transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a database query duration, and an error if one occurred.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
