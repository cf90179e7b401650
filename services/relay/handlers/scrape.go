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
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeRelay/services/relay/observability"
	"github.com/AleutianAI/CodeRelay/services/scraper"
)

// HandleScrape serves POST /api/scrape.
func HandleScrape(fetcher PageFetcher, metrics *observability.HTTPMetrics, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		var req ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "URL is required"})
			return
		}

		page, err := fetcher.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			var status *scraper.StatusError
			switch {
			case errors.Is(err, scraper.ErrInvalidURL):
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			case errors.As(err, &status):
				metrics.RecordUpstreamError(observability.UpstreamScraper)
				logger.Warn("scrape target returned error status", "status", status.StatusCode)
				c.JSON(upstreamStatus(status.StatusCode), ErrorResponse{Error: status.Error()})
			default:
				metrics.RecordUpstreamError(observability.UpstreamScraper)
				logger.Error("scrape failed", "error", err)
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			}
			return
		}

		logger.Info("page scraped", "chars", page.FullLength)
		c.JSON(http.StatusOK, page)
	}
}
