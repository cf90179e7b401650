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
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name                          string
		errors, warnings, suggestions int
		want                          int
	}{
		{"clean", 0, 0, 0, 100},
		{"two warnings", 0, 2, 0, 90},
		{"one error", 1, 0, 0, 75},
		{"mixed", 1, 2, 3, 59},
		{"exactly zero", 4, 0, 0, 0},
		{"clamped", 10, 10, 10, 0},
		{"negative counts", -3, -1, -2, 100},
		{"overflow", math.MaxInt / 2, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.errors, tt.warnings, tt.suggestions); got != tt.want {
				t.Errorf("Score(%d, %d, %d) = %d, want %d", tt.errors, tt.warnings, tt.suggestions, got, tt.want)
			}
		})
	}
}

func TestScore_NonIncreasing(t *testing.T) {
	for e := 0; e <= 5; e++ {
		for w := 0; w <= 21; w++ {
			for s := 0; s <= 51; s++ {
				base := Score(e, w, s)
				if base < 0 || base > MaxScore {
					t.Fatalf("Score(%d, %d, %d) = %d out of range", e, w, s, base)
				}
				if Score(e+1, w, s) > base || Score(e, w+1, s) > base || Score(e, w, s+1) > base {
					t.Fatalf("Score increased after adding a finding to (%d, %d, %d)", e, w, s)
				}
			}
		}
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score int
		want  Grade
	}{
		{100, GradeA},
		{90, GradeA},
		{89, GradeB},
		{80, GradeB},
		{79, GradeC},
		{70, GradeC},
		{69, GradeD},
		{60, GradeD},
		{59, GradeF},
		{0, GradeF},
	}

	for _, tt := range tests {
		if got := GradeFor(tt.score); got != tt.want {
			t.Errorf("GradeFor(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	findings := []Finding{
		{Rule: "a", Severity: SeverityWarning},
		{Rule: "b", Severity: SeveritySuggestion},
		{Rule: "c", Severity: SeverityError},
	}

	r := Aggregate(LanguageJavaScript, findings)

	if r.Valid {
		t.Error("Valid = true with an error finding")
	}
	if r.Score != 68 {
		t.Errorf("Score = %d, want 68", r.Score)
	}
	if r.Grade != GradeD {
		t.Errorf("Grade = %v, want D", r.Grade)
	}
	if len(r.Errors()) != 1 || len(r.Warnings()) != 1 || len(r.Suggestions()) != 1 {
		t.Errorf("partition = %d/%d/%d, want 1/1/1", len(r.Errors()), len(r.Warnings()), len(r.Suggestions()))
	}

	empty := Aggregate(LanguageOther, nil)
	if !empty.Valid || empty.Score != 100 || empty.Grade != GradeA || empty.Findings == nil {
		t.Errorf("Aggregate(nil) = %+v, want valid empty report", empty)
	}
}

func TestSeverity_Text(t *testing.T) {
	for _, sev := range []Severity{SeveritySuggestion, SeverityWarning, SeverityError} {
		text, err := sev.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", sev, err)
		}
		var got Severity
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != sev {
			t.Errorf("round trip of %v = %v", sev, got)
		}
	}
	if Severity(7).String() != "unknown" {
		t.Errorf("Severity(7).String() = %q, want unknown", Severity(7).String())
	}
	var s Severity
	if err := s.UnmarshalText([]byte("fatal")); err == nil {
		t.Error("UnmarshalText(fatal) error = nil")
	}
}
