// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer runs light heuristic quality checks over source
// snippets submitted to the relay.
//
// # Overview
//
// An analysis is a pipeline of four stages:
//
//	Request ──► Registry.Lookup ──► RuleSet.Inspect ──► Prober.Probe ──► Aggregate
//	            (language tag)      (text heuristics)   (JS only, opt.)   (score, grade)
//
// The rule sets work on raw text. There is no parser and no AST, so the
// checks are coarse: a brace inside a string literal counts as a brace.
// Findings carry a stable rule ID, a severity and a message, but no
// position.
//
// # Languages
//
// JavaScript (and its aliases), Python, HTML and CSS have rule sets.
// Any other tag resolves to LanguageOther, which has an empty rule set
// and always produces a valid report with score 100.
//
// # Dynamic Probe
//
// When a Prober is configured, JavaScript snippets are also executed in
// an embedded ECMAScript interpreter with no host bindings. A thrown
// error becomes a js/runtime-error finding and an exceeded deadline a
// js/runtime-timeout finding, both at error severity. Reports produced
// with the probe enabled are not guaranteed to be reproducible.
//
// # Scoring
//
//	score = clamp(100 - 25*errors - 5*warnings - 2*suggestions, 0, 100)
//
// Grades are A (>= 90), B (>= 80), C (>= 70), D (>= 60) and F.
//
// # Thread Safety
//
// Analyzer, Registry and RuleSet are immutable after construction and
// safe for concurrent use. Each Analyze call builds its own Report.
//
// # Usage
//
//	a := analyzer.New(analyzer.WithProber(analyzer.NewGojaProber()))
//	report, err := a.Analyze(ctx, analyzer.Request{Code: src, Language: "js"})
//	if err != nil {
//	    return err // ErrMissingCode, ErrMissingLanguage or ErrAnalysisFailed
//	}
//	fmt.Println(report.Score, report.Grade)
package analyzer
