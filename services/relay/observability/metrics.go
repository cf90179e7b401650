// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the relay's HTTP
// surface.
//
// # Description
//
// Request counters and latency histograms are recorded per route template
// (for example /api/code-quality) so path parameters cannot explode label
// cardinality. Upstream failures from the chat, scrape and encyclopedia
// relays are counted separately.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "coderelay"
	httpSubsystem    = "http"
)

// Upstream services reported by RecordUpstreamError.
const (
	UpstreamLLM          = "llm"
	UpstreamScraper      = "scraper"
	UpstreamEncyclopedia = "encyclopedia"
)

// HTTPMetrics holds the relay's request metrics.
type HTTPMetrics struct {
	// RequestsTotal counts requests.
	// Labels: route, method, status
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: route, method
	RequestDurationSeconds *prometheus.HistogramVec

	// InFlight tracks requests currently being served.
	InFlight prometheus.Gauge

	// UpstreamErrorsTotal counts failed outbound calls.
	// Labels: upstream
	UpstreamErrorsTotal *prometheus.CounterVec
}

// NewHTTPMetrics creates the metrics and registers them with reg.
//
// Panics on duplicate registration, so call it once per registry. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),

		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_in_flight",
				Help:      "HTTP requests currently being served",
			},
		),

		UpstreamErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "upstream_errors_total",
				Help:      "Failed calls to upstream services",
			},
			[]string{"upstream"},
		),
	}
}

// =============================================================================
// Recording
// =============================================================================

// Middleware records every request handled by the engine.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDurationSeconds.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// RecordUpstreamError counts a failed outbound call. Safe on a nil
// receiver so handlers can run without metrics.
func (m *HTTPMetrics) RecordUpstreamError(upstream string) {
	if m == nil {
		return
	}
	m.UpstreamErrorsTotal.WithLabelValues(upstream).Inc()
}
