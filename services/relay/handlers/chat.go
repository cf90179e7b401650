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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeRelay/services/llm"
	"github.com/AleutianAI/CodeRelay/services/relay/observability"
)

// DefaultMaxTokens applies when a chat request omits max_tokens.
const DefaultMaxTokens = 4096

// HandleChat serves POST /api/chat.
//
// Description:
//
//	Relays {messages, system, max_tokens} to the configured model backend
//	and returns the provider's message JSON unchanged when available.
//	A nil client means no API key was configured.
//
// Outputs:
//
//	200 - The provider's message.
//	400 - Malformed body.
//	500 - {"error":"API key not configured"} or a transport failure.
//	4xx/5xx - {"error":"API failed","details":<upstream body>} with the
//	          upstream status.
func HandleChat(client llm.ChatClient, metrics *observability.HTTPMetrics, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		if client == nil {
			logger.Error("chat request rejected: API key not configured")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: llm.ErrAPIKeyMissing.Error()})
			return
		}

		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
			return
		}
		if req.MaxTokens == 0 {
			req.MaxTokens = DefaultMaxTokens
		}

		logger.Info("chat request received", "messages", len(req.Messages))
		resp, err := client.Chat(c.Request.Context(), llm.ChatRequest{
			Messages:  req.Messages,
			System:    req.System,
			MaxTokens: req.MaxTokens,
		})
		if err != nil {
			metrics.RecordUpstreamError(observability.UpstreamLLM)

			var upstream *llm.UpstreamError
			if errors.As(err, &upstream) {
				logger.Error("chat upstream failed", "status", upstream.StatusCode)
				c.JSON(upstreamStatus(upstream.StatusCode), ErrorResponse{Error: "API failed", Details: upstream.Body})
				return
			}
			logger.Error("chat failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		logger.Info("chat response received", "chars", len(resp.Text()))
		if len(resp.Raw) > 0 {
			c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Raw)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
