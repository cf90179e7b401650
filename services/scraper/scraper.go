// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scraper fetches web pages and reduces them to plain text.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/CodeRelay/pkg/validation"
)

const (
	// DefaultUserAgent mimics a desktop browser; many sites refuse
	// obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultMaxContent is the number of characters returned in Page.Content.
	DefaultMaxContent = 15000

	defaultMaxBody = 10 << 20
)

// ErrInvalidURL wraps URL validation failures.
var ErrInvalidURL = errors.New("invalid url")

// StatusError reports a non-2xx response from the scraped site.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to fetch: %d", e.StatusCode)
}

// HTTPClient is the subset of *http.Client the scraper uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Page is the cleaned text of a fetched page.
type Page struct {
	// Content is the first MaxContent characters of the text.
	Content string `json:"content"`

	// FullLength is the character count of the full cleaned text.
	FullLength int `json:"fullLength"`

	// URL is the URL as requested.
	URL string `json:"url"`
}

// Scraper fetches and cleans pages.
//
// Thread Safety: Safe for concurrent use. The rate limiter is shared by
// all callers.
type Scraper struct {
	client     HTTPClient
	limiter    *rate.Limiter
	userAgent  string
	maxContent int
	maxBody    int64
	policy     *bluemonday.Policy
	logger     *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(s *Scraper) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRateLimit bounds outbound fetches to r per second with the given
// burst. A non-positive r disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Scraper) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithMaxContent sets how many characters Page.Content keeps.
func WithMaxContent(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxContent = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scraper. Without WithRateLimit fetches are unlimited.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:     &http.Client{Timeout: 20 * time.Second},
		userAgent:  DefaultUserAgent,
		maxContent: DefaultMaxContent,
		maxBody:    defaultMaxBody,
		policy:     NewTextPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads rawURL and returns its text content.
//
// Description:
//
//	Validates the URL, waits for the rate limiter, performs a GET with a
//	browser User-Agent and strips the markup. Script and style bodies
//	are dropped entirely.
//
// Outputs:
//
//	*Page - The cleaned page.
//	error - ErrInvalidURL (wrapped), *StatusError for non-2xx responses,
//	        or a transport/context error.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := validation.SanitizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("scrape rejected", "host", u.Host, "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	text := s.Clean(string(body))
	full := utf8.RuneCountInString(text)

	s.logger.Info("page scraped", "host", u.Host, "chars", full)
	return &Page{
		Content:    truncateRunes(text, s.maxContent),
		FullLength: full,
		URL:        rawURL,
	}, nil
}

// Clean strips markup from an HTML document and collapses whitespace.
func (s *Scraper) Clean(doc string) string {
	return CleanText(s.policy, doc)
}

// CleanText strips markup with policy, unescapes entities and collapses
// whitespace runs to single spaces.
func CleanText(policy *bluemonday.Policy, doc string) string {
	stripped := policy.Sanitize(doc)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// NewTextPolicy returns a policy that removes every tag, drops script
// and style bodies and leaves a space where a tag was.
func NewTextPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
