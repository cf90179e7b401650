// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes assembles the relay's gin engine.
package routes

import (
	"log/slog"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/CodeRelay/services/llm"
	"github.com/AleutianAI/CodeRelay/services/relay/handlers"
	"github.com/AleutianAI/CodeRelay/services/relay/middleware"
	"github.com/AleutianAI/CodeRelay/services/relay/observability"
)

// DefaultMaxBodyBytes caps API request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Dependencies are the services behind the routes. Chat may be nil when no
// API key is configured; /api/chat then answers 500.
type Dependencies struct {
	Analyzer     handlers.CodeAnalyzer
	Chat         llm.ChatClient
	Scraper      handlers.PageFetcher
	Encyclopedia handlers.GuideFinder

	// Metrics records request metrics. Nil disables them.
	Metrics *observability.HTTPMetrics

	// MetricsHandler serves /metrics. Nil selects promhttp.Handler().
	MetricsHandler http.Handler

	// RateLimiter guards the outbound relay routes. Nil disables it.
	RateLimiter *middleware.RateLimiter

	// StaticDir is served for unmatched GET requests when it exists.
	StaticDir string

	// MaxBodyBytes caps /api request bodies. Zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64

	Logger *slog.Logger
}

// NewRouter returns an engine with the middleware chain and every route.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(handlers.ServiceName),
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
	)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}

	SetupRoutes(router, deps)
	return router
}

// SetupRoutes registers the routes on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger

	router.GET("/health", handlers.HealthCheck)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	api := router.Group("/api", middleware.MaxBodyBytes(maxBody))
	{
		api.POST("/validate-code", handlers.HandleValidateCode(deps.Analyzer, logger))
		api.POST("/code-quality", handlers.HandleCodeQuality(deps.Analyzer, logger))

		// Routes that call third parties share a per-client budget.
		relay := api.Group("")
		if deps.RateLimiter != nil {
			relay.Use(deps.RateLimiter.Middleware())
		}
		relay.POST("/chat", handlers.HandleChat(deps.Chat, deps.Metrics, logger))
		relay.POST("/scrape", handlers.HandleScrape(deps.Scraper, deps.Metrics, logger))
		relay.POST("/game-guide", handlers.HandleGameGuide(deps.Encyclopedia, deps.Metrics, logger))
	}

	router.NoRoute(staticFallback(deps.StaticDir))
}

// staticFallback serves files from dir for unmatched GET and HEAD
// requests and answers everything else with a JSON 404.
func staticFallback(dir string) gin.HandlerFunc {
	var files http.FileSystem
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			files = http.Dir(dir)
		}
	}
	var fileServer http.Handler
	if files != nil {
		fileServer = http.FileServer(files)
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if fileServer != nil && (method == http.MethodGet || method == http.MethodHead) {
			if f, err := files.Open(path.Clean("/" + c.Request.URL.Path)); err == nil {
				_ = f.Close()
				fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
		}
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "Not found"})
	}
}
