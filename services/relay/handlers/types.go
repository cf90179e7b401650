// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the relay's HTTP endpoints.
//
// Each constructor closes over the service it fronts and returns a
// gin.HandlerFunc. Services are taken as small interfaces so tests can
// substitute fakes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/CodeRelay/services/analyzer"
	"github.com/AleutianAI/CodeRelay/services/encyclopedia"
	"github.com/AleutianAI/CodeRelay/services/llm"
	"github.com/AleutianAI/CodeRelay/services/scraper"
)

// =============================================================================
// Service Interfaces
// =============================================================================

// CodeAnalyzer is satisfied by *analyzer.Analyzer.
type CodeAnalyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Report, error)
	AnalyzeStatic(ctx context.Context, req analyzer.Request) (*analyzer.Report, error)
}

// PageFetcher is satisfied by *scraper.Scraper.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Page, error)
}

// GuideFinder is satisfied by *encyclopedia.Client.
type GuideFinder interface {
	Lookup(ctx context.Context, name string) (*encyclopedia.Guide, error)
}

// =============================================================================
// Request and Response Bodies
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages  []llm.Message `json:"messages" binding:"required,min=1,max=100,dive"`
	System    string        `json:"system"`
	MaxTokens int           `json:"max_tokens" binding:"omitempty,min=1,max=64000"`
}

// ScrapeRequest is the body of POST /api/scrape.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// GameGuideRequest is the body of POST /api/game-guide.
type GameGuideRequest struct {
	GameName string `json:"gameName"`
}

// CodeRequest is the body of both code endpoints.
type CodeRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

// ValidateCodeResponse is returned by POST /api/validate-code.
type ValidateCodeResponse struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	Summary     string   `json:"summary"`
}

// CodeQualityResponse is returned by POST /api/code-quality.
type CodeQualityResponse struct {
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	IsValid     bool     `json:"isValid"`
	Score       int      `json:"score"`
	Grade       string   `json:"grade"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// Binding Errors
// =============================================================================

func init() {
	// Report JSON field names rather than Go field names in binding errors.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindingMessage turns a ShouldBindJSON error into a client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// upstreamStatus keeps relayed statuses inside the error range.
func upstreamStatus(code int) int {
	if code < 400 || code > 599 {
		return 502
	}
	return code
}
