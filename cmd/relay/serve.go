// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CodeRelay/pkg/logging"
	"github.com/AleutianAI/CodeRelay/pkg/telemetry"
	"github.com/AleutianAI/CodeRelay/services/analyzer"
	"github.com/AleutianAI/CodeRelay/services/encyclopedia"
	"github.com/AleutianAI/CodeRelay/services/llm"
	"github.com/AleutianAI/CodeRelay/services/relay/config"
	"github.com/AleutianAI/CodeRelay/services/relay/middleware"
	"github.com/AleutianAI/CodeRelay/services/relay/observability"
	"github.com/AleutianAI/CodeRelay/services/relay/routes"
	"github.com/AleutianAI/CodeRelay/services/scraper"
	"github.com/AleutianAI/CodeRelay/services/storage/badger"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the HTTP service.

Configuration is read from --config (YAML), then overridden by environment
variables such as PORT, ANTHROPIC_API_KEY and LOG_LEVEL. A .env file in the
working directory is loaded first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CODERELAY_CONFIG"), "path to YAML config")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config and PORT)")
	return cmd
}

// runServe wires the services and serves until ctx ends.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Log.Dir,
		Service: "relay",
		JSON:    cfg.Log.JSON,
	})
	defer logger.Close()
	log := logger.Slog()

	// Wipe enclave-held API keys on the way out.
	defer memguard.Purge()

	if cfg.LogLevel() != logging.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "coderelay",
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	chat, err := newChatClient(cfg.LLM, logger)
	if err != nil {
		return err
	}

	store, err := openCache(cfg.Encyclopedia, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	codeAnalyzer, err := newAnalyzer(cfg.Analyzer, logger)
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		Analyzer: codeAnalyzer,
		Chat:     chat,
		Scraper: scraper.New(
			scraper.WithHTTPClient(&http.Client{Timeout: cfg.Scraper.Timeout}),
			scraper.WithUserAgent(cfg.Scraper.UserAgent),
			scraper.WithMaxContent(cfg.Scraper.MaxContent),
			scraper.WithRateLimit(cfg.Scraper.RatePerSecond, cfg.Scraper.Burst),
			scraper.WithLogger(logger.With("component", "scraper").Slog()),
		),
		Encyclopedia: encyclopedia.New(
			encyclopedia.WithAPIURL(cfg.Encyclopedia.BaseURL),
			encyclopedia.WithTimeout(cfg.Encyclopedia.Timeout),
			encyclopedia.WithCache(store, cfg.Encyclopedia.CacheTTL),
			encyclopedia.WithLogger(logger.With("component", "encyclopedia").Slog()),
		),
		Metrics:        observability.NewHTTPMetrics(prometheus.DefaultRegisterer),
		MetricsHandler: telemetry.MetricsHandler(),
		StaticDir:      cfg.Server.StaticDir,
		Logger:         logger.With("component", "http").Slog(),
	}
	if cfg.Server.RatePerSecond > 0 {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.Server.RatePerSecond, cfg.Server.Burst)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("relay listening",
			"addr", srv.Addr,
			"llm_backend", cfg.LLM.Backend,
			"chat_enabled", chat != nil,
			"dynamic_probe", cfg.Analyzer.DynamicProbe)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newAnalyzer builds the analyzer from config, attaching the
// process-isolated probe when enabled.
func newAnalyzer(cfg config.AnalyzerConfig, logger *logging.Logger) (*analyzer.Analyzer, error) {
	registry := analyzer.NewRegistry(
		analyzer.WithStrictHTML(cfg.StrictHTML),
		analyzer.WithHTMLTagTolerance(cfg.HTMLTagTolerance),
		analyzer.WithDisabledRules(cfg.DisabledRules...),
	)
	opts := []analyzer.Option{
		analyzer.WithRegistry(registry),
		analyzer.WithLogger(logger.With("component", "analyzer").Slog()),
	}
	if cfg.DynamicProbe {
		prober, err := newSandboxProber(cfg.ProbeTimeout, cfg.ProbeMemoryLimit, cfg.ProbeConcurrency,
			logger.With("component", "probe").Slog())
		if err != nil {
			return nil, err
		}
		opts = append(opts, analyzer.WithProber(prober))
	}
	return analyzer.New(opts...), nil
}

// newChatClient returns nil, nil when no API key is configured so the
// service still starts and /api/chat reports the missing key.
func newChatClient(cfg config.LLMConfig, logger *logging.Logger) (llm.ChatClient, error) {
	log := logger.With("component", "llm")
	if cfg.APIKey == "" {
		log.Warn("no API key configured; chat relay disabled", "backend", cfg.Backend)
		return nil, nil
	}

	switch cfg.Backend {
	case config.BackendOpenAI:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Logger:    log.Slog(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		return client, nil
	default:
		opts := []llm.AnthropicOption{
			llm.WithAnthropicModel(cfg.Model),
			llm.WithAnthropicMaxTokens(cfg.MaxTokens),
			llm.WithAnthropicHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			llm.WithAnthropicLogger(log.Slog()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, llm.WithAnthropicBaseURL(cfg.BaseURL))
		}
		client, err := llm.NewAnthropicClient(cfg.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("anthropic client: %w", err)
		}
		return client, nil
	}
}

func openCache(cfg config.EncyclopediaConfig, logger *logging.Logger) (*badger.Store, error) {
	storeCfg := badger.InMemoryConfig()
	if cfg.CacheDir != "" {
		storeCfg = badger.PersistentConfig(cfg.CacheDir)
	}
	storeCfg.Logger = logger.With("component", "cache").Slog()

	store, err := badger.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open guide cache: %w", err)
	}
	return store, nil
}
