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
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity ranks a finding. Only SeverityError affects validity.
type Severity int

const (
	// SeveritySuggestion marks a style or maintainability hint.
	SeveritySuggestion Severity = iota

	// SeverityWarning marks a likely defect or risky pattern.
	SeverityWarning

	// SeverityError marks a defect that makes the snippet invalid.
	SeverityError
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeveritySuggestion:
		return "suggestion"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "suggestion":
		*s = SeveritySuggestion
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// =============================================================================
// LANGUAGE
// =============================================================================

// Language is a canonical language name produced by NormalizeLanguage.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"

	// LanguageOther is the catch-all for unrecognised tags.
	LanguageOther Language = "other"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is the input to a single analysis.
type Request struct {
	// Code is the raw snippet text.
	Code string

	// Language is a free-form tag such as "js" or "Python".
	Language string
}

// Validate checks the request for caller-input errors.
func (r Request) Validate() error {
	if r.Code == "" {
		return ErrMissingCode
	}
	if strings.TrimSpace(r.Language) == "" {
		return ErrMissingLanguage
	}
	return nil
}

// =============================================================================
// FINDING
// =============================================================================

// Finding is a single observation produced by a rule or the probe.
type Finding struct {
	// Rule is the stable rule identifier, e.g. "js/var".
	Rule string `json:"rule"`

	// Severity ranks the finding.
	Severity Severity `json:"severity"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// =============================================================================
// GRADE
// =============================================================================

// Grade is a letter bucket derived from the score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// =============================================================================
// REPORT
// =============================================================================

// Report is the result of one analysis.
//
// Thread Safety: Built fresh per call and not mutated after Analyze
// returns.
type Report struct {
	// Language is the normalised language the rules ran for.
	Language Language `json:"language"`

	// Findings lists every finding in rule order, probe findings last.
	Findings []Finding `json:"findings"`

	// Valid is true when no finding has SeverityError.
	Valid bool `json:"valid"`

	// Score is in [0, 100].
	Score int `json:"score"`

	// Grade is derived from Score.
	Grade Grade `json:"grade"`

	// Probed is true when the dynamic probe ran for this report.
	Probed bool `json:"probed"`

	// Duration is the wall-clock time spent analysing.
	Duration time.Duration `json:"duration_ns"`
}

// Errors returns the findings with SeverityError.
func (r *Report) Errors() []Finding { return r.bySeverity(SeverityError) }

// Warnings returns the findings with SeverityWarning.
func (r *Report) Warnings() []Finding { return r.bySeverity(SeverityWarning) }

// Suggestions returns the findings with SeveritySuggestion.
func (r *Report) Suggestions() []Finding { return r.bySeverity(SeveritySuggestion) }

// Messages returns the messages of findings with the given severity.
func (r *Report) Messages(sev Severity) []string {
	out := make([]string, 0)
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f.Message)
		}
	}
	return out
}

func (r *Report) bySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}
