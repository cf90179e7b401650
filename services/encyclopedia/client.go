// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package encyclopedia looks up video game articles on Wikipedia.
//
// Lookups run a full-text search for "<name> video game", take the top
// hit and fetch its extract as plain text. Identical concurrent lookups
// share one upstream round trip, and found articles are cached.
package encyclopedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/CodeRelay/pkg/validation"
	"github.com/AleutianAI/CodeRelay/services/scraper"
)

const (
	// DefaultAPIURL is the MediaWiki action API endpoint.
	DefaultAPIURL = "https://en.wikipedia.org/w/api.php"

	// DefaultArticleURL prefixes article links.
	DefaultArticleURL = "https://en.wikipedia.org/wiki/"

	defaultTimeout = 15 * time.Second
	maxAPIBody     = 4 << 20
	cacheKeyPrefix = "guide:"
)

var (
	// ErrInvalidName wraps game name validation failures.
	ErrInvalidName = errors.New("invalid game name")

	// ErrUpstream indicates the encyclopedia API failed.
	ErrUpstream = errors.New("encyclopedia request failed")
)

// Guide is the result of a lookup.
type Guide struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Found   bool   `json:"found"`
}

// Cache stores serialized guides. *badger.Store satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HTTPClient is the subset of *http.Client the client uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs lookups.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	httpClient HTTPClient
	apiURL     string
	articleURL string
	timeout    time.Duration
	cache      Cache
	cacheTTL   time.Duration
	group      singleflight.Group
	policy     *bluemonday.Policy
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAPIURL overrides the API endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// WithArticleURL overrides the article link prefix.
func WithArticleURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.articleURL = u
		}
	}
}

// WithTimeout bounds one upstream lookup, independent of the caller.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache caches found guides for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiURL:     DefaultAPIURL,
		articleURL: DefaultArticleURL,
		timeout:    defaultTimeout,
		policy:     scraper.NewTextPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the guide for a game.
//
// Description:
//
//	Serves from cache when possible. Otherwise concurrent lookups for
//	the same name are coalesced into one upstream fetch that is not
//	cancelled when an individual caller gives up.
//
// Outputs:
//
//	*Guide - Found is false when the search had no hits.
//	error - ErrInvalidName (wrapped), ErrUpstream (wrapped) or ctx.Err().
func (c *Client) Lookup(ctx context.Context, name string) (*Guide, error) {
	name, err := validation.SanitizeSearchTerm(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	key := cacheKeyPrefix + strings.ToLower(name)

	if g, ok := c.cached(ctx, key); ok {
		return g, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		g, err := c.fetch(fetchCtx, name)
		if err != nil {
			return nil, err
		}
		if g.Found {
			c.store(fetchCtx, key, g)
		}
		return g, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		g := *res.Val.(*Guide)
		return &g, nil
	}
}

func (c *Client) cached(ctx context.Context, key string) (*Guide, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var g Guide
	if err := json.Unmarshal(data, &g); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return &g, true
}

func (c *Client) store(ctx context.Context, key string, g *Guide) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) fetch(ctx context.Context, name string) (*Guide, error) {
	var search searchResponse
	err := c.getJSON(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {name + " video game"},
		"format":   {"json"},
		"origin":   {"*"},
	}, &search)
	if err != nil {
		return nil, err
	}

	if len(search.Query.Search) == 0 {
		c.logger.Info("no encyclopedia results", "name", name)
		return &Guide{
			Content: fmt.Sprintf("No Wikipedia page found for %q. Try a different name or check spelling.", name),
			Found:   false,
		}, nil
	}
	title := search.Query.Search[0].Title

	var extract extractResponse
	err = c.getJSON(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"extracts"},
		"exintro": {"false"},
		"titles":  {title},
		"format":  {"json"},
		"origin":  {"*"},
	}, &extract)
	if err != nil {
		return nil, err
	}

	text := ""
	for _, page := range extract.Query.Pages {
		text = page.Extract
		break
	}
	content := scraper.CleanText(c.policy, text)
	if content == "" {
		content = "No content available."
	}

	c.logger.Info("encyclopedia page retrieved", "title", title, "chars", len(content))
	return &Guide{
		Title:   title,
		Content: content,
		URL:     c.articleURL + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
		Found:   true,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}
