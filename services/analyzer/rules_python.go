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

var (
	pyPrintStatement = regexp.MustCompile(`(?m)^[ \t]*print[ \t]+[^\s(=]`)
	pyDefHeader      = regexp.MustCompile(`^([ \t]*)(?:async[ \t]+)?def[ \t]+(\w+)[ \t]*\(.*\)[ \t]*(?:->[^:]*)?:[ \t]*(?:#.*)?$`)
)

// pythonRules returns the rule set for Python.
func pythonRules() RuleSet {
	return RuleSet{
		matchRule("py/print-statement", SeverityError, pyPrintStatement,
			"Missing parentheses in print() (Python 2 syntax)"),
		NewRule("py/empty-def", SeverityError, checkEmptyDefs),
		NewRule("py/mixed-indentation", SeverityWarning, checkIndentation),
	}
}

// checkEmptyDefs reports function headers whose next code line is not
// indented deeper than the header, including a header on the last line.
func checkEmptyDefs(src string) (string, bool) {
	lines := splitLines(src)
	var empty []string
	for i, line := range lines {
		m := pyDefHeader.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headerIndent := indentWidth(m[1])
		next, ok := nextCodeLine(lines, i+1)
		if !ok || indentWidth(leadingWhitespace(next)) <= headerIndent {
			empty = append(empty, m[2])
		}
	}
	if len(empty) == 0 {
		return "", false
	}
	return fmt.Sprintf("Empty function definition: %s", strings.Join(empty, ", ")), true
}

// checkIndentation flags indentation that mixes tabs and spaces, or
// space indentation whose widths are not multiples of the smallest one.
func checkIndentation(src string) (string, bool) {
	var (
		tabs, spaces bool
		widths       []int
	)
	for _, line := range splitLines(src) {
		if isBlankOrComment(line) {
			continue
		}
		ws := leadingWhitespace(line)
		if ws == "" {
			continue
		}
		hasTab := strings.Contains(ws, "\t")
		hasSpace := strings.Contains(ws, " ")
		if hasTab && hasSpace {
			return "Inconsistent indentation: tabs and spaces mixed on one line", true
		}
		tabs = tabs || hasTab
		spaces = spaces || hasSpace
		if hasSpace {
			widths = append(widths, len(ws))
		}
	}
	if tabs && spaces {
		return "Inconsistent indentation: both tabs and spaces used", true
	}
	if len(widths) == 0 {
		return "", false
	}
	unit := widths[0]
	for _, w := range widths {
		unit = min(unit, w)
	}
	for _, w := range widths {
		if w%unit != 0 {
			return fmt.Sprintf("Inconsistent indentation: %d spaces is not a multiple of %d", w, unit), true
		}
	}
	return "", false
}

func splitLines(src string) []string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func nextCodeLine(lines []string, from int) (string, bool) {
	for _, l := range lines[from:] {
		if !isBlankOrComment(l) {
			return l, true
		}
	}
	return "", false
}

func isBlankOrComment(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(t, "#")
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// indentWidth counts a tab as eight columns.
func indentWidth(ws string) int {
	n := 0
	for _, r := range ws {
		if r == '\t' {
			n += 8 - n%8
		} else {
			n++
		}
	}
	return n
}
