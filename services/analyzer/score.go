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

// Score weights per finding.
const (
	ErrorWeight      = 25
	WarningWeight    = 5
	SuggestionWeight = 2
	MaxScore         = 100
)

// Score computes the quality score for the given finding counts.
//
// Description:
//
//	score = clamp(100 - 25*errors - 5*warnings - 2*suggestions, 0, 100).
//	Negative counts are treated as zero, so the function is total and
//	non-increasing in every argument.
func Score(errors, warnings, suggestions int) int {
	penalty := ErrorWeight*boundCount(errors) + WarningWeight*boundCount(warnings) + SuggestionWeight*boundCount(suggestions)
	if penalty >= MaxScore {
		return 0
	}
	return MaxScore - penalty
}

// boundCount clamps a count to [0, MaxScore]. Any count above MaxScore
// already yields a zero score, and the bound keeps the penalty from
// overflowing.
func boundCount(n int) int {
	return min(max(n, 0), MaxScore)
}

// GradeFor maps a score to its letter grade.
func GradeFor(score int) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// Aggregate builds a report from findings: validity, score and grade.
// The findings slice is stored, not copied.
func Aggregate(lang Language, findings []Finding) *Report {
	if findings == nil {
		findings = []Finding{}
	}
	var errs, warns, suggs int
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warns++
		default:
			suggs++
		}
	}
	score := Score(errs, warns, suggs)
	return &Report{
		Language: lang,
		Findings: findings,
		Valid:    errs == 0,
		Score:    score,
		Grade:    GradeFor(score),
	}
}
