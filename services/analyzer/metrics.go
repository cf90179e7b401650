// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("coderelay.analyzer")
	meter  = otel.Meter("coderelay.analyzer")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	findingsTotal   metric.Int64Counter
	probeRuns       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"analysis_duration_seconds",
			metric.WithDescription("Duration of code quality analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"analysis_total",
			metric.WithDescription("Total number of code quality analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"analysis_findings_total",
			metric.WithDescription("Total number of findings by severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		probeRuns, err = meter.Int64Counter(
			"analysis_probe_runs_total",
			metric.WithDescription("Dynamic probe runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startAnalyzeSpan(ctx context.Context, language Language, codeBytes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("analysis.language", string(language)),
			attribute.Int("analysis.code_bytes", codeBytes),
		),
	)
}

func setAnalyzeSpanResult(span trace.Span, report *Report) {
	span.SetAttributes(
		attribute.Int("analysis.findings", len(report.Findings)),
		attribute.Bool("analysis.valid", report.Valid),
		attribute.Int("analysis.score", report.Score),
		attribute.Bool("analysis.probed", report.Probed),
	)
}

func recordAnalysisMetrics(ctx context.Context, language Language, duration time.Duration, report *Report, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", string(language)),
		attribute.Bool("success", success),
	)
	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)

	if report == nil {
		return
	}
	counts := map[Severity]int64{}
	for _, f := range report.Findings {
		counts[f.Severity]++
	}
	for sev, n := range counts {
		findingsTotal.Add(ctx, n, metric.WithAttributes(
			attribute.String("language", string(language)),
			attribute.String("severity", sev.String()),
		))
	}
}

func recordProbeOutcome(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	probeRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
