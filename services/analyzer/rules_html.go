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

// htmlTagMinLength is the snippet length above which a missing <html>
// element is reported. Shorter snippets are treated as fragments.
const htmlTagMinLength = 50

// voidTags never take a closing tag.
var voidTags = map[string]bool{
	"img":   true,
	"br":    true,
	"hr":    true,
	"input": true,
	"meta":  true,
	"link":  true,
}

var (
	htmlDoctype  = regexp.MustCompile(`(?i)<!doctype\s+html`)
	htmlElement  = regexp.MustCompile(`(?i)<html\b`)
	htmlHead     = regexp.MustCompile(`(?i)<head[\s>]`)
	htmlTitle    = regexp.MustCompile(`(?i)<title[\s>]`)
	htmlCharset  = regexp.MustCompile(`(?i)\bcharset\s*=`)
	htmlViewport = regexp.MustCompile(`(?i)<meta\b[^>]*\bname\s*=\s*["']?viewport`)
	htmlImg      = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	htmlAlt      = regexp.MustCompile(`(?i)\balt\s*=`)
	htmlOpenTag  = regexp.MustCompile(`<([a-zA-Z][\w-]*)[^>]*>`)
	htmlCloseTag = regexp.MustCompile(`</([a-zA-Z][\w-]*)\s*>`)
)

// htmlPolicy selects how strictly document structure is enforced.
type htmlPolicy struct {
	// strict raises missing doctype and <html> to errors.
	strict bool

	// tagTolerance is the allowed |open - close| difference per tag.
	tagTolerance int
}

// htmlRules returns the HTML rule set for the given policy.
func htmlRules(policy htmlPolicy) RuleSet {
	structural := SeverityWarning
	if policy.strict {
		structural = SeverityError
	}
	isDocument := func(src string) bool { return htmlElement.MatchString(src) }
	longEnough := func(src string) bool { return utf8.RuneCountInString(src) > htmlTagMinLength }

	return RuleSet{
		missingRule("html/doctype", structural, htmlDoctype, nil,
			"Missing <!DOCTYPE html> declaration"),
		missingRule("html/html-tag", structural, htmlElement, longEnough,
			"Missing <html> tag"),
		missingRule("html/head", SeverityWarning, htmlHead, isDocument,
			"Missing <head> section"),
		missingRule("html/title", SeverityWarning, htmlTitle, isDocument,
			"Missing <title> element"),
		missingRule("html/charset", SeverityWarning, htmlCharset, isDocument,
			"Missing character encoding declaration (<meta charset>)"),
		missingRule("html/viewport", SeverityWarning, htmlViewport, isDocument,
			"Missing viewport meta tag"),
		NewRule("html/img-alt", SeverityWarning, checkImageAlt),
		NewRule("html/unclosed-tags", SeverityWarning, func(src string) (string, bool) {
			return checkTagBalance(src, policy.tagTolerance)
		}),
	}
}

func checkImageAlt(src string) (string, bool) {
	missing := 0
	for _, tag := range htmlImg.FindAllString(src, -1) {
		if !htmlAlt.MatchString(tag) {
			missing++
		}
	}
	if missing == 0 {
		return "", false
	}
	return fmt.Sprintf("%d image(s) without alt attribute", missing), true
}

// checkTagBalance compares open and close counts per tag name, ignoring
// void and self-closing tags. Tags are reported in order of first
// appearance.
func checkTagBalance(src string, tolerance int) (string, bool) {
	type counts struct{ open, close int }
	var order []string
	seen := make(map[string]*counts)
	get := func(name string) *counts {
		name = strings.ToLower(name)
		c, ok := seen[name]
		if !ok {
			c = &counts{}
			seen[name] = c
			order = append(order, name)
		}
		return c
	}

	for _, m := range htmlOpenTag.FindAllStringSubmatch(src, -1) {
		if strings.HasSuffix(m[0], "/>") || voidTags[strings.ToLower(m[1])] {
			continue
		}
		get(m[1]).open++
	}
	for _, m := range htmlCloseTag.FindAllStringSubmatch(src, -1) {
		if voidTags[strings.ToLower(m[1])] {
			continue
		}
		get(m[1]).close++
	}

	var problems []string
	for _, name := range order {
		c := seen[name]
		diff := c.open - c.close
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			problems = append(problems, fmt.Sprintf("Mismatched <%s> tag: %d open, %d close", name, c.open, c.close))
		}
	}
	if len(problems) == 0 {
		return "", false
	}
	return strings.Join(problems, "; "), true
}
