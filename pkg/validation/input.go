// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values the relay
// forwards to third-party services.
//
// URLs and search terms arrive from untrusted clients and end up in
// outbound requests, so they are normalised and checked here before any
// network call is made.
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxURLLength bounds URLs accepted for scraping.
	MaxURLLength = 2048

	// MaxSearchTermLength bounds encyclopedia search terms, in runes.
	MaxSearchTermLength = 200
)

// SanitizeURL trims raw and validates it as an absolute http(s) URL.
//
// Example:
//
//	u, err := validation.SanitizeURL(req.URL)
//	if err != nil {
//	    return nil, fmt.Errorf("invalid url: %w", err)
//	}
//	// u is safe to fetch
func SanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if len(raw) > MaxURLLength {
		return nil, fmt.Errorf("url exceeds %d bytes", MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid url scheme %q (must be http or https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("url must not carry credentials")
	}
	return u, nil
}

// SanitizeSearchTerm trims term, collapses inner whitespace and rejects
// empty, overlong or control-character input.
func SanitizeSearchTerm(term string) (string, error) {
	normalized := strings.Join(strings.Fields(term), " ")
	if normalized == "" {
		return "", fmt.Errorf("search term cannot be empty")
	}
	if utf8.RuneCountInString(normalized) > MaxSearchTermLength {
		return "", fmt.Errorf("search term exceeds %d characters", MaxSearchTermLength)
	}
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("search term contains control characters")
		}
	}
	return normalized, nil
}
