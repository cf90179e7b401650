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
	"regexp"
	"strings"
)

// =============================================================================
// RULE
// =============================================================================

// Rule is one independent check over raw source text.
//
// Implementations must be pure: the same source always yields the same
// result, and Inspect must not retain or mutate shared state.
type Rule interface {
	// ID returns the stable rule identifier, e.g. "js/var".
	ID() string

	// Inspect returns a finding and true when the rule fires.
	Inspect(source string) (Finding, bool)
}

// checkFunc inspects source and returns the finding message when it
// fires.
type checkFunc func(source string) (string, bool)

type textRule struct {
	id       string
	severity Severity
	check    checkFunc
}

func (r *textRule) ID() string { return r.id }

func (r *textRule) Inspect(source string) (Finding, bool) {
	msg, ok := r.check(source)
	if !ok {
		return Finding{}, false
	}
	return Finding{Rule: r.id, Severity: r.severity, Message: msg}, true
}

// NewRule builds a Rule from a check function. The check returns the
// finding message and whether the rule fired.
func NewRule(id string, severity Severity, check func(source string) (string, bool)) Rule {
	return &textRule{id: id, severity: severity, check: check}
}

// matchRule fires when re matches anywhere in the source.
func matchRule(id string, severity Severity, re *regexp.Regexp, msg string) Rule {
	return NewRule(id, severity, func(src string) (string, bool) {
		return msg, re.MatchString(src)
	})
}

// pairRule fires when trigger matches and guard does not match anywhere.
func pairRule(id string, severity Severity, trigger, guard *regexp.Regexp, msg string) Rule {
	return NewRule(id, severity, func(src string) (string, bool) {
		return msg, trigger.MatchString(src) && !guard.MatchString(src)
	})
}

// missingRule fires when re does not match and the optional precondition
// holds.
func missingRule(id string, severity Severity, re *regexp.Regexp, when func(string) bool, msg string) Rule {
	return NewRule(id, severity, func(src string) (string, bool) {
		if when != nil && !when(src) {
			return "", false
		}
		return msg, !re.MatchString(src)
	})
}

// balanceRule fires when the raw counts of open and close differ. It does
// not skip string literals or comments.
func balanceRule(id string, severity Severity, open, close, noun string) Rule {
	return NewRule(id, severity, func(src string) (string, bool) {
		o, c := strings.Count(src, open), strings.Count(src, close)
		if o == c {
			return "", false
		}
		return fmt.Sprintf("Unmatched %s: %d open, %d close", noun, o, c), true
	})
}

// =============================================================================
// RULE SET
// =============================================================================

// RuleSet is an ordered list of rules for one language. Order only
// affects the order of findings in a report.
type RuleSet []Rule

// Inspect runs every rule and returns the findings in rule order. The
// returned slice is never nil and is owned by the caller.
func (rs RuleSet) Inspect(source string) []Finding {
	findings := make([]Finding, 0, 4)
	for _, rule := range rs {
		if f, ok := rule.Inspect(source); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

// IDs returns the rule identifiers in order.
func (rs RuleSet) IDs() []string {
	ids := make([]string, len(rs))
	for i, rule := range rs {
		ids[i] = rule.ID()
	}
	return ids
}

// Without returns a copy of the set with the named rules removed.
func (rs RuleSet) Without(disabled map[string]bool) RuleSet {
	if len(disabled) == 0 {
		return rs
	}
	out := make(RuleSet, 0, len(rs))
	for _, rule := range rs {
		if !disabled[rule.ID()] {
			out = append(out, rule)
		}
	}
	return out
}
