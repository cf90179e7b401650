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
	"errors"
	"fmt"
)

// Sentinel errors returned by Analyze.
var (
	// ErrMissingCode indicates the request carried no source text.
	ErrMissingCode = errors.New("code is required")

	// ErrMissingLanguage indicates the request carried no language tag.
	ErrMissingLanguage = errors.New("language is required")

	// ErrAnalysisFailed indicates an internal fault while analysing.
	// The underlying cause is logged, not returned to callers.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrProbeTimeout indicates the dynamic probe exceeded its deadline.
	ErrProbeTimeout = errors.New("execution timed out")
)

// RuntimeError is returned by a Prober when the snippet threw.
type RuntimeError struct {
	// Message is the interpreter's description of the failure.
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s", e.Message)
}

// IsInputError reports whether err was caused by the caller's request
// rather than by the analyzer.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingCode) || errors.Is(err, ErrMissingLanguage)
}
