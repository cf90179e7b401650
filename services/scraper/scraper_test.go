// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient returns canned responses.
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestScraper_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `<html><head><style>body{color:red}</style>
<script>var secret = "x";</script></head>
<body><h1>Hello</h1><p>Tom &amp; Jerry</p>
<p>second   paragraph</p></body></html>`)
	}))
	defer srv.Close()

	s := New()
	page, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Hello Tom & Jerry second paragraph", page.Content)
	assert.Equal(t, len("Hello Tom & Jerry second paragraph"), page.FullLength)
	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestScraper_Truncates(t *testing.T) {
	body := "<p>" + strings.Repeat("é", 50) + "</p>"
	s := New(
		WithMaxContent(10),
		WithHTTPClient(&MockHTTPClient{DoFunc: func(*http.Request) (*http.Response, error) {
			return htmlResponse(http.StatusOK, body), nil
		}}),
	)

	page, err := s.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), page.Content)
	assert.Equal(t, 50, page.FullLength)
}

func TestScraper_StatusError(t *testing.T) {
	s := New(WithHTTPClient(&MockHTTPClient{DoFunc: func(*http.Request) (*http.Response, error) {
		return htmlResponse(http.StatusForbidden, "no"), nil
	}}))

	_, err := s.Fetch(context.Background(), "https://example.com")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "Failed to fetch: 403", statusErr.Error())
}

func TestScraper_InvalidURL(t *testing.T) {
	called := false
	s := New(WithHTTPClient(&MockHTTPClient{DoFunc: func(*http.Request) (*http.Response, error) {
		called = true
		return htmlResponse(http.StatusOK, ""), nil
	}}))

	for _, u := range []string{"", "file:///etc/passwd", "not a url"} {
		_, err := s.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
	assert.False(t, called)
}

func TestScraper_TransportError(t *testing.T) {
	s := New(WithHTTPClient(&MockHTTPClient{DoFunc: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}))

	_, err := s.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestScraper_RateLimitHonoursContext(t *testing.T) {
	s := New(
		WithRateLimit(0.001, 1),
		WithHTTPClient(&MockHTTPClient{DoFunc: func(*http.Request) (*http.Response, error) {
			return htmlResponse(http.StatusOK, "<p>x</p>"), nil
		}}),
	)

	_, err := s.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Fetch(ctx, "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<div>a</div><div>b</div>", "a b"},
		{"<script>alert(1)</script>visible", "visible"},
		{"&lt;tag&gt; &quot;q&quot;", `<tag> "q"`},
		{"  lots \n\n of \t space ", "lots of space"},
		{"", ""},
	}

	policy := NewTextPolicy()
	for _, tt := range tests {
		if got := CleanText(policy, tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
