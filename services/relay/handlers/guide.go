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

	"github.com/AleutianAI/CodeRelay/services/encyclopedia"
	"github.com/AleutianAI/CodeRelay/services/relay/observability"
)

// HandleGameGuide serves POST /api/game-guide.
func HandleGameGuide(finder GuideFinder, metrics *observability.HTTPMetrics, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		var req GameGuideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
			return
		}
		if strings.TrimSpace(req.GameName) == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Game name is required"})
			return
		}

		guide, err := finder.Lookup(c.Request.Context(), req.GameName)
		if err != nil {
			if errors.Is(err, encyclopedia.ErrInvalidName) {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
				return
			}
			metrics.RecordUpstreamError(observability.UpstreamEncyclopedia)
			logger.Error("game guide lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, guide)
	}
}
