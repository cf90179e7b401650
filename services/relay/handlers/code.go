// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeRelay/services/analyzer"
)

// HandleValidateCode serves POST /api/validate-code.
//
// Runs the static rules only and returns
// {valid, issues, warnings, suggestions, summary}.
func HandleValidateCode(a CodeAnalyzer, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		report, ok := runAnalysis(c, logger, a.AnalyzeStatic)
		if !ok {
			return
		}

		issues := report.Messages(analyzer.SeverityError)
		summary := "Code looks good!"
		if len(issues) > 0 {
			summary = fmt.Sprintf("Found %d issue(s)", len(issues))
		}

		c.JSON(http.StatusOK, ValidateCodeResponse{
			Valid:       report.Valid,
			Issues:      issues,
			Warnings:    report.Messages(analyzer.SeverityWarning),
			Suggestions: report.Messages(analyzer.SeveritySuggestion),
			Summary:     summary,
		})
	}
}

// HandleCodeQuality serves POST /api/code-quality.
//
// Runs the full pipeline, including the runtime probe when the analyzer
// has one, and returns {errors, warnings, suggestions, isValid, score, grade}.
func HandleCodeQuality(a CodeAnalyzer, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		report, ok := runAnalysis(c, logger, a.Analyze)
		if !ok {
			return
		}

		c.JSON(http.StatusOK, CodeQualityResponse{
			Errors:      report.Messages(analyzer.SeverityError),
			Warnings:    report.Messages(analyzer.SeverityWarning),
			Suggestions: report.Messages(analyzer.SeveritySuggestion),
			IsValid:     report.Valid,
			Score:       report.Score,
			Grade:       string(report.Grade),
		})
	}
}

type analyzeFunc func(ctx context.Context, req analyzer.Request) (*analyzer.Report, error)

// runAnalysis binds the body, runs fn and writes any error response. It
// reports false when a response has already been written.
func runAnalysis(c *gin.Context, logger *slog.Logger, fn analyzeFunc) (*analyzer.Report, bool) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
		return nil, false
	}

	report, err := fn(c.Request.Context(), analyzer.Request{Code: req.Code, Language: req.Language})
	switch {
	case err == nil:
	case analyzer.IsInputError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return nil, false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Request cancelled"})
		return nil, false
	default:
		logger.Error("code analysis failed", "language", req.Language, "code_bytes", len(req.Code), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed"})
		return nil, false
	}

	logger.Info("code analyzed",
		"language", string(report.Language),
		"code_bytes", len(req.Code),
		"errors", len(report.Errors()),
		"warnings", len(report.Warnings()),
		"score", report.Score)
	return report, true
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
