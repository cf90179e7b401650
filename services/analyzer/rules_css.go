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

// maxImportant is the number of !important declarations tolerated.
const maxImportant = 3

var (
	cssComment   = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssImportant = regexp.MustCompile(`(?i)!\s*important\b`)
	cssFloat     = regexp.MustCompile(`(?i)(?:^|[^\w-])float\s*:`)
	cssClear     = regexp.MustCompile(`(?i)(?:^|[^\w-])clear\s*:`)
)

// cssRules returns the rule set for CSS.
func cssRules() RuleSet {
	return RuleSet{
		balanceRule("css/unbalanced-braces", SeverityError, "{", "}", "braces"),
		NewRule("css/missing-value", SeverityWarning, checkDeclarations),
		NewRule("css/important-overuse", SeverityWarning, checkImportant),
		pairRule("css/float-without-clear", SeveritySuggestion, cssFloat, cssClear,
			"float used without clear; consider flexbox or grid"),
	}
}

func checkImportant(src string) (string, bool) {
	n := len(cssImportant.FindAllStringIndex(src, -1))
	if n <= maxImportant {
		return "", false
	}
	return fmt.Sprintf("Too many !important declarations (%d)", n), true
}

// checkDeclarations walks the stylesheet and reports the first
// declaration inside a block that has no property value. Semicolons
// inside strings and parentheses do not end a declaration.
func checkDeclarations(src string) (string, bool) {
	src = cssComment.ReplaceAllString(src, "")

	var (
		buf    strings.Builder
		depth  int
		parens int
		quote  rune
	)
	flush := func() (string, bool) {
		decl := strings.TrimSpace(buf.String())
		buf.Reset()
		if depth == 0 || decl == "" {
			return "", false
		}
		prop, value, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(prop) == "" || strings.TrimSpace(value) == "" {
			return fmt.Sprintf("Possible missing property value: %q", decl), true
		}
		return "", false
	}

	for _, r := range src {
		if quote != 0 {
			buf.WriteRune(r)
			if r == quote {
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
			buf.WriteRune(r)
		case '(':
			parens++
			buf.WriteRune(r)
		case ')':
			if parens > 0 {
				parens--
			}
			buf.WriteRune(r)
		case '{':
			// Text before a brace is a selector or at-rule prelude.
			buf.Reset()
			depth++
		case '}':
			if msg, bad := flush(); bad {
				return msg, true
			}
			if depth > 0 {
				depth--
			}
		case ';':
			if parens > 0 {
				buf.WriteRune(r)
				continue
			}
			if msg, bad := flush(); bad {
				return msg, true
			}
		default:
			buf.WriteRune(r)
		}
	}
	return "", false
}
