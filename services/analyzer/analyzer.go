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
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// Rule IDs for findings produced by the dynamic probe.
const (
	RuleRuntimeError   = "js/runtime-error"
	RuleRuntimeTimeout = "js/runtime-timeout"
)

// Analyzer runs the analysis pipeline.
//
// Thread Safety: Safe for concurrent use. An Analyzer holds no mutable
// state; every call builds its own findings and report.
type Analyzer struct {
	registry *Registry
	prober   Prober
	logger   *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRegistry sets the rule registry. Defaults to NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithProber enables the dynamic probe for probe-eligible languages.
// A nil prober disables it.
func WithProber(p Prober) Option {
	return func(a *Analyzer) {
		a.prober = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Analyzer. Without WithProber the dynamic probe is off.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProbeEnabled reports whether a Prober is configured.
func (a *Analyzer) ProbeEnabled() bool {
	return a.prober != nil
}

// Analyze runs the rule set for the request's language and, when
// configured and eligible, the dynamic probe.
//
// Description:
//
//	Validates the request, resolves the language, runs every rule, runs
//	the probe for JavaScript-family snippets and aggregates the findings
//	into a scored report. A panic in a rule or prober is recovered and
//	reported as ErrAnalysisFailed.
//
// Inputs:
//
//	ctx - Context for tracing and probe cancellation.
//	req - The snippet and its language tag.
//
// Outputs:
//
//	*Report - The report. Nil if err is non-nil.
//	error - ErrMissingCode, ErrMissingLanguage, ErrAnalysisFailed or the
//	        context error if ctx ended during the probe.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	return a.analyze(ctx, req, true)
}

// AnalyzeStatic is Analyze without the dynamic probe. The result is a
// pure function of the request.
func (a *Analyzer) AnalyzeStatic(ctx context.Context, req Request) (*Report, error) {
	return a.analyze(ctx, req, false)
}

func (a *Analyzer) analyze(ctx context.Context, req Request, allowProbe bool) (report *Report, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	lang, rules, eligible := a.registry.Lookup(req.Language)

	ctx, span := startAnalyzeSpan(ctx, lang, len(req.Code))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked",
				"language", lang,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			span.SetStatus(codes.Error, "panic")
			recordAnalysisMetrics(ctx, lang, time.Since(start), nil, false)
			report, err = nil, ErrAnalysisFailed
		}
	}()

	findings := rules.Inspect(req.Code)

	probed := false
	if allowProbe && eligible && a.prober != nil {
		f, ok, ran, perr := a.runProbe(ctx, req.Code)
		probed = ran
		if perr != nil {
			span.RecordError(perr)
			span.SetStatus(codes.Error, "cancelled")
			recordAnalysisMetrics(ctx, lang, time.Since(start), nil, false)
			return nil, perr
		}
		if ok {
			findings = append(findings, f)
		}
	}

	report = Aggregate(lang, findings)
	report.Probed = probed
	report.Duration = time.Since(start)

	setAnalyzeSpanResult(span, report)
	recordAnalysisMetrics(ctx, lang, report.Duration, report, true)

	a.logger.Debug("analysis complete",
		"language", lang,
		"code_bytes", len(req.Code),
		"findings", len(report.Findings),
		"score", report.Score,
		"probed", probed,
		"duration", report.Duration,
	)
	return report, nil
}

// runProbe converts the probe outcome into at most one finding. ran is
// false when the probe was skipped for lack of capacity. The returned
// error is non-nil only when ctx ended.
func (a *Analyzer) runProbe(ctx context.Context, code string) (f Finding, ok, ran bool, err error) {
	perr := a.prober.Probe(ctx, code)

	var rtErr *RuntimeError
	switch {
	case perr == nil:
		recordProbeOutcome(ctx, "ok")
		return Finding{}, false, true, nil
	case errors.Is(perr, ErrProbeSkipped):
		recordProbeOutcome(ctx, "skipped")
		a.logger.Warn("probe skipped", "reason", perr)
		return Finding{}, false, false, nil
	case errors.Is(perr, ErrProbeTimeout):
		recordProbeOutcome(ctx, "timeout")
		return Finding{
			Rule:     RuleRuntimeTimeout,
			Severity: SeverityError,
			Message:  "Execution did not finish within the time limit (possible infinite loop)",
		}, true, true, nil
	case errors.Is(perr, context.Canceled), errors.Is(perr, context.DeadlineExceeded):
		recordProbeOutcome(ctx, "cancelled")
		return Finding{}, false, true, perr
	case errors.As(perr, &rtErr):
		recordProbeOutcome(ctx, "error")
		return Finding{
			Rule:     RuleRuntimeError,
			Severity: SeverityError,
			Message:  "Runtime error: " + rtErr.Message,
		}, true, true, nil
	default:
		recordProbeOutcome(ctx, "error")
		a.logger.Warn("probe failed", "error", perr)
		return Finding{
			Rule:     RuleRuntimeError,
			Severity: SeverityError,
			Message:  "Runtime error: " + perr.Error(),
		}, true, true, nil
	}
}
