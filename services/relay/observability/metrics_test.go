// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(m *HTTPMetrics) *gin.Engine {
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return router
}

func serve(router http.Handler, method, path string) {
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
}

func TestMiddleware_CountsByRouteAndStatus(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	router := newTestRouter(m)

	serve(router, http.MethodGet, "/health")
	serve(router, http.MethodGet, "/health")
	serve(router, http.MethodPost, "/api/fail")
	serve(router, http.MethodGet, "/nowhere")

	tests := []struct {
		route, method, status string
		want                  float64
	}{
		{"/health", "GET", "200", 2},
		{"/api/fail", "POST", "502", 1},
		{"unmatched", "GET", "404", 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.route, tt.method, tt.status))
		if got != tt.want {
			t.Errorf("requests_total{%s,%s,%s} = %v, want %v", tt.route, tt.method, tt.status, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.RequestDurationSeconds); n != 3 {
		t.Errorf("duration series = %d, want 3", n)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("in-flight after requests = %v, want 0", got)
	}
}

func TestRecordUpstreamError(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	m.RecordUpstreamError(UpstreamLLM)
	m.RecordUpstreamError(UpstreamLLM)
	m.RecordUpstreamError(UpstreamScraper)

	if got := testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues(UpstreamLLM)); got != 2 {
		t.Errorf("llm errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.UpstreamErrorsTotal.WithLabelValues(UpstreamScraper)); got != 1 {
		t.Errorf("scraper errors = %v, want 1", got)
	}
}

func TestRecordUpstreamError_NilReceiver(t *testing.T) {
	var m *HTTPMetrics
	m.RecordUpstreamError(UpstreamEncyclopedia)
}

func TestNewHTTPMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewHTTPMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("second NewHTTPMetrics on the same registry did not panic")
		}
	}()
	NewHTTPMetrics(reg)
}
