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
	"unicode/utf8"
)

const (
	// maxLineLength is the longest line js/long-lines accepts.
	maxLineLength = 120

	// strictModeMinLength is the snippet length above which js/use-strict
	// suggests a directive.
	strictModeMinLength = 100
)

var (
	jsConsoleNoCall  = regexp.MustCompile(`console\.log\b\s*(?:[^\s(]|$)`)
	jsConstNoInit    = regexp.MustCompile(`\bconst\s+[\w$]+\s*;`)
	jsDynamicEval    = regexp.MustCompile(`(?:^|[^\w.$]|\b(?:window|globalThis|self)\.)eval\s*\(|\bnew\s+Function\s*\(`)
	jsVar            = regexp.MustCompile(`\bvar\s+[\w$]`)
	jsLooseEquality  = regexp.MustCompile(`(?:^|[^=!<>])==(?:[^=]|$)`)
	jsEmptyIf        = regexp.MustCompile(`\bif\s*\([^)]*\)\s*;`)
	jsEmptyFunction  = regexp.MustCompile(`\bfunction\s+[\w$]+\s*\([^)]*\)\s*\{\s*\}`)
	jsAwait          = regexp.MustCompile(`\bawait\b`)
	jsTry            = regexp.MustCompile(`\btry\s*\{`)
	jsThen           = regexp.MustCompile(`\.then\s*\(`)
	jsCatch          = regexp.MustCompile(`\.catch\s*\(`)
	jsRawHTMLSink    = regexp.MustCompile(`\.(?:inner|outer)HTML\s*\+?=(?:[^=]|$)|\bdocument\.write(?:ln)?\s*\(|\.insertAdjacentHTML\s*\(`)
	jsSetInterval    = regexp.MustCompile(`\bsetInterval\s*\(`)
	jsClearInterval  = regexp.MustCompile(`\bclearInterval\s*\(`)
	jsSetTimeout     = regexp.MustCompile(`\bsetTimeout\s*\(`)
	jsClearTimeout   = regexp.MustCompile(`\bclearTimeout\s*\(`)
	jsLoopLength     = regexp.MustCompile(`\bfor\s*\([^;)]*;[^;)]*\.length\b[^;)]*;`)
	jsAddListener    = regexp.MustCompile(`\baddEventListener\s*\(`)
	jsRemoveListener = regexp.MustCompile(`\bremoveEventListener\s*\(`)
)

// javaScriptRules returns the rule set for the JavaScript family.
func javaScriptRules() RuleSet {
	return RuleSet{
		// Errors
		balanceRule("js/unbalanced-braces", SeverityError, "{", "}", "braces"),
		balanceRule("js/unbalanced-parens", SeverityError, "(", ")", "parentheses"),
		balanceRule("js/unbalanced-brackets", SeverityError, "[", "]", "brackets"),
		matchRule("js/console-call", SeverityError, jsConsoleNoCall,
			"Missing parentheses in console.log()"),
		matchRule("js/const-without-init", SeverityError, jsConstNoInit,
			"const declaration without initialization"),
		matchRule("js/dynamic-eval", SeverityError, jsDynamicEval,
			"eval() or new Function() executes arbitrary strings as code (security risk)"),

		// Warnings
		matchRule("js/var", SeverityWarning, jsVar,
			"Use let or const instead of var for block scoping"),
		matchRule("js/loose-equality", SeverityWarning, jsLooseEquality,
			"Use === instead of == to avoid type coercion"),
		matchRule("js/empty-if", SeverityWarning, jsEmptyIf,
			"Empty if statement detected"),
		matchRule("js/empty-function", SeverityWarning, jsEmptyFunction,
			"Empty function detected"),
		pairRule("js/await-without-try", SeverityWarning, jsAwait, jsTry,
			"await used without try/catch; rejected promises will go unhandled"),
		pairRule("js/then-without-catch", SeverityWarning, jsThen, jsCatch,
			"Promise chain has .then() but no .catch()"),
		matchRule("js/raw-html-sink", SeverityWarning, jsRawHTMLSink,
			"Writing raw HTML (innerHTML, outerHTML, document.write) allows script injection"),
		NewRule("js/uncleared-timer", SeverityWarning, checkUnclearedTimers),

		// Suggestions
		matchRule("js/loop-length", SeveritySuggestion, jsLoopLength,
			"Cache .length outside the loop condition"),
		pairRule("js/listener-not-removed", SeveritySuggestion, jsAddListener, jsRemoveListener,
			"addEventListener without removeEventListener may leak listeners"),
		NewRule("js/long-lines", SeveritySuggestion, checkLongLines),
		NewRule("js/use-strict", SeveritySuggestion, checkUseStrict),
	}
}

func checkUnclearedTimers(src string) (string, bool) {
	var leaks []string
	if jsSetInterval.MatchString(src) && !jsClearInterval.MatchString(src) {
		leaks = append(leaks, "setInterval without clearInterval")
	}
	if jsSetTimeout.MatchString(src) && !jsClearTimeout.MatchString(src) {
		leaks = append(leaks, "setTimeout without clearTimeout")
	}
	if len(leaks) == 0 {
		return "", false
	}
	return strings.Join(leaks, " and ") + " may leak timers", true
}

func checkLongLines(src string) (string, bool) {
	count := 0
	for _, line := range strings.Split(src, "\n") {
		if utf8.RuneCountInString(strings.TrimRight(line, "\r")) > maxLineLength {
			count++
		}
	}
	if count == 0 {
		return "", false
	}
	return fmt.Sprintf("%d line(s) longer than %d characters", count, maxLineLength), true
}

func checkUseStrict(src string) (string, bool) {
	if utf8.RuneCountInString(src) <= strictModeMinLength || strings.Contains(src, "use strict") {
		return "", false
	}
	return `Consider adding "use strict" for better error catching`, true
}
