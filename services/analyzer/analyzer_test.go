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
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// childEnv makes the test binary act as a probe child process.
const childEnv = "CODERELAY_ANALYZER_TEST_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		if err := ServeProbe(context.Background(), os.Stdin, os.Stdout, os.Getenv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProber returns a fixed outcome and counts calls.
type stubProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *stubProber) Probe(ctx context.Context, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *stubProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var ignoreDuration = cmpopts.IgnoreFields(Report{}, "Duration")

// =============================================================================
// Worked examples
// =============================================================================

func TestAnalyze_Examples(t *testing.T) {
	a := New(WithLogger(quietLogger()))

	tests := []struct {
		name string
		req  Request
		want *Report
	}{
		{
			name: "clean function",
			req:  Request{Code: "function f() { return 1; }", Language: "javascript"},
			want: &Report{
				Language: LanguageJavaScript,
				Findings: []Finding{},
				Valid:    true,
				Score:    100,
				Grade:    GradeA,
			},
		},
		{
			name: "var and loose equality",
			req:  Request{Code: "var x = 1; if (x == 1) { console.log(x) }", Language: "js"},
			want: &Report{
				Language: LanguageJavaScript,
				Findings: []Finding{
					{Rule: "js/var", Severity: SeverityWarning, Message: "Use let or const instead of var for block scoping"},
					{Rule: "js/loose-equality", Severity: SeverityWarning, Message: "Use === instead of == to avoid type coercion"},
				},
				Valid: true,
				Score: 90,
				Grade: GradeA,
			},
		},
		{
			name: "unclosed brace",
			req:  Request{Code: "function f() {", Language: "javascript"},
			want: &Report{
				Language: LanguageJavaScript,
				Findings: []Finding{
					{Rule: "js/unbalanced-braces", Severity: SeverityError, Message: "Unmatched braces: 1 open, 0 close"},
				},
				Valid: false,
				Score: 75,
				Grade: GradeC,
			},
		},
		{
			name: "html fragment with unclosed paragraph",
			req:  Request{Code: "<html><body><p>hi</body></html>", Language: "html"},
			want: &Report{
				Language: LanguageHTML,
				Findings: []Finding{
					{Rule: "html/doctype", Severity: SeverityWarning, Message: "Missing <!DOCTYPE html> declaration"},
					{Rule: "html/head", Severity: SeverityWarning, Message: "Missing <head> section"},
					{Rule: "html/title", Severity: SeverityWarning, Message: "Missing <title> element"},
					{Rule: "html/charset", Severity: SeverityWarning, Message: "Missing character encoding declaration (<meta charset>)"},
					{Rule: "html/viewport", Severity: SeverityWarning, Message: "Missing viewport meta tag"},
					{Rule: "html/unclosed-tags", Severity: SeverityWarning, Message: "Mismatched <p> tag: 1 open, 0 close"},
				},
				Valid: true,
				Score: 70,
				Grade: GradeC,
			},
		},
		{
			name: "eval",
			req:  Request{Code: "eval('1+1')", Language: "javascript"},
			want: &Report{
				Language: LanguageJavaScript,
				Findings: []Finding{
					{Rule: "js/dynamic-eval", Severity: SeverityError, Message: "eval() or new Function() executes arbitrary strings as code (security risk)"},
				},
				Valid: false,
				Score: 75,
				Grade: GradeC,
			},
		},
		{
			name: "unknown language fails open",
			req:  Request{Code: "PROCEDURE DIVISION.", Language: "cobol"},
			want: &Report{
				Language: LanguageOther,
				Findings: []Finding{},
				Valid:    true,
				Score:    100,
				Grade:    GradeA,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(context.Background(), tt.req)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, ignoreDuration); diff != "" {
				t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnalyze_StrictHTMLExample(t *testing.T) {
	a := New(WithRegistry(NewRegistry(WithStrictHTML(true))), WithLogger(quietLogger()))

	got, err := a.Analyze(context.Background(), Request{Code: "<html><body><p>hi</body></html>", Language: "html"})
	require.NoError(t, err)

	assert.False(t, got.Valid)
	assert.Len(t, got.Errors(), 1)
	assert.Equal(t, "html/doctype", got.Errors()[0].Rule)
	assert.Equal(t, 100-25-5*5, got.Score)
}

func TestAnalyze_EvalWithProbe(t *testing.T) {
	a := New(WithProber(NewGojaProber()), WithLogger(quietLogger()))

	got, err := a.Analyze(context.Background(), Request{Code: "eval('1+1')", Language: "javascript"})
	require.NoError(t, err)

	assert.True(t, got.Probed)
	assert.False(t, got.Valid)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "js/dynamic-eval", got.Findings[0].Rule)
}

// =============================================================================
// Input errors
// =============================================================================

func TestAnalyze_InputErrors(t *testing.T) {
	a := New(WithLogger(quietLogger()))

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing code", Request{Language: "js"}, ErrMissingCode},
		{"missing language", Request{Code: "x"}, ErrMissingLanguage},
		{"blank language", Request{Code: "x", Language: "  "}, ErrMissingLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(context.Background(), tt.req)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := New(WithLogger(quietLogger())).Analyze(ctx, Request{Code: "x", Language: "js"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsInputError(err))
}

// =============================================================================
// Invariants
// =============================================================================

var invariantSamples = []Request{
	{Code: "function f() { return 1; }", Language: "js"},
	{Code: "var a = [1, 2; if (a == 1);\nconst b;\nsetInterval(f, 1);", Language: "javascript"},
	{Code: strings.Repeat("el.innerHTML = x; ", 10), Language: "jsx"},
	{Code: "def f():\n\tprint 'x'\n        y = 1", Language: "python"},
	{Code: "<div><img src=x><p>open", Language: "html"},
	{Code: "a { color red; float: left; x: 1 !important !important !important !important", Language: "css"},
	{Code: "anything at all", Language: "brainfuck"},
}

func TestAnalyze_ValidityMatchesErrors(t *testing.T) {
	a := New(WithLogger(quietLogger()))
	for _, req := range invariantSamples {
		r, err := a.Analyze(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, len(r.Errors()) == 0, r.Valid, "validity for %q", req.Code)
		assert.Equal(t, Score(len(r.Errors()), len(r.Warnings()), len(r.Suggestions())), r.Score)
		assert.Equal(t, GradeFor(r.Score), r.Grade)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := New(WithLogger(quietLogger()))
	for _, req := range invariantSamples {
		first, err := a.Analyze(context.Background(), req)
		require.NoError(t, err)
		second, err := a.Analyze(context.Background(), req)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second, ignoreDuration); diff != "" {
			t.Errorf("second analysis of %q differs (-first +second):\n%s", req.Code, diff)
		}
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	a := New(WithProber(NewGojaProber()), WithLogger(quietLogger()))
	want, err := a.AnalyzeStatic(context.Background(), invariantSamples[1])
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := a.AnalyzeStatic(context.Background(), invariantSamples[1])
			if err != nil {
				errs <- err
				return
			}
			if !cmp.Equal(want, got, ignoreDuration) {
				errs <- errors.New("concurrent report differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// =============================================================================
// Probe integration
// =============================================================================

func TestAnalyze_ProbeOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		probeErr error
		wantRule string
	}{
		{"clean", nil, ""},
		{"runtime error", &RuntimeError{Message: "TypeError: x is not a function"}, RuleRuntimeError},
		{"timeout", ErrProbeTimeout, RuleRuntimeTimeout},
		{"unexpected", errors.New("sandbox broke"), RuleRuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProber{err: tt.probeErr}
			a := New(WithProber(p), WithLogger(quietLogger()))

			r, err := a.Analyze(context.Background(), Request{Code: "x()", Language: "js"})
			require.NoError(t, err)
			assert.Equal(t, 1, p.Calls())
			assert.True(t, r.Probed)

			if tt.wantRule == "" {
				assert.Empty(t, r.Findings)
				assert.True(t, r.Valid)
				return
			}
			require.NotEmpty(t, r.Findings)
			last := r.Findings[len(r.Findings)-1]
			assert.Equal(t, tt.wantRule, last.Rule)
			assert.Equal(t, SeverityError, last.Severity)
			assert.False(t, r.Valid)
		})
	}
}

func TestAnalyze_RuntimeErrorMessage(t *testing.T) {
	p := &stubProber{err: &RuntimeError{Message: "ReferenceError: foo is not defined"}}
	r, err := New(WithProber(p), WithLogger(quietLogger())).Analyze(context.Background(), Request{Code: "foo()", Language: "js"})
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "Runtime error: ReferenceError: foo is not defined", r.Findings[0].Message)
}

func TestAnalyze_ProbeOnlyForJavaScript(t *testing.T) {
	p := &stubProber{err: ErrProbeTimeout}
	a := New(WithProber(p), WithLogger(quietLogger()))

	for _, lang := range []string{"python", "html", "css", "go"} {
		r, err := a.Analyze(context.Background(), Request{Code: "x", Language: lang})
		require.NoError(t, err)
		assert.False(t, r.Probed, lang)
	}
	assert.Zero(t, p.Calls())
}

func TestAnalyzeStatic_SkipsProbe(t *testing.T) {
	p := &stubProber{err: ErrProbeTimeout}
	a := New(WithProber(p), WithLogger(quietLogger()))

	r, err := a.AnalyzeStatic(context.Background(), Request{Code: "x()", Language: "js"})
	require.NoError(t, err)
	assert.False(t, r.Probed)
	assert.True(t, r.Valid)
	assert.Zero(t, p.Calls())
	assert.True(t, a.ProbeEnabled())
	assert.False(t, New().ProbeEnabled())
}

func TestAnalyze_ProbeCancelled(t *testing.T) {
	p := &stubProber{err: context.Canceled}
	r, err := New(WithProber(p), WithLogger(quietLogger())).Analyze(context.Background(), Request{Code: "x()", Language: "js"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Fault isolation
// =============================================================================

type panicProber struct{}

func (panicProber) Probe(context.Context, string) error { panic("prober exploded") }

func TestAnalyze_RecoversRulePanic(t *testing.T) {
	boom := NewRule("css/boom", SeverityError, func(string) (string, bool) {
		panic("rule exploded")
	})
	a := New(
		WithRegistry(NewRegistry(WithRuleSet(LanguageCSS, RuleSet{boom}))),
		WithLogger(quietLogger()),
	)

	r, err := a.Analyze(context.Background(), Request{Code: "a{}", Language: "css"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.False(t, IsInputError(err))

	// Other languages are unaffected.
	r, err = a.Analyze(context.Background(), Request{Code: "x = 1", Language: "py"})
	require.NoError(t, err)
	assert.True(t, r.Valid)
}

func TestAnalyze_RecoversProberPanic(t *testing.T) {
	a := New(WithProber(panicProber{}), WithLogger(quietLogger()))

	r, err := a.Analyze(context.Background(), Request{Code: "x()", Language: "js"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestReport_Messages(t *testing.T) {
	r := Aggregate(LanguageJavaScript, []Finding{
		{Rule: "a", Severity: SeverityError, Message: "first"},
		{Rule: "b", Severity: SeverityWarning, Message: "second"},
	})
	assert.Equal(t, []string{"first"}, r.Messages(SeverityError))
	assert.Equal(t, []string{}, r.Messages(SeveritySuggestion))
}
