// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the relay service configuration.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, then environment variables (including any loaded
// from .env files).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/CodeRelay/pkg/logging"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// LLM backends.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

// Default models per backend.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// DefaultSecretPath is read for the Anthropic key when no env var is set.
const DefaultSecretPath = "/run/secrets/anthropic_api_key"

// Config is the full relay configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	LLM          LLMConfig          `yaml:"llm"`
	Scraper      ScraperConfig      `yaml:"scraper"`
	Encyclopedia EncyclopediaConfig `yaml:"encyclopedia"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Log          LogConfig          `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	StaticDir       string        `yaml:"static_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RatePerSecond and Burst limit each client on the outbound relay
	// routes (chat, scrape, game-guide). Zero disables the limit.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type LLMConfig struct {
	Backend   string        `yaml:"backend"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`

	// APIKeyFile is consulted when the backend's env var is empty.
	APIKeyFile string `yaml:"api_key_file"`

	// APIKey is never read from or written to YAML.
	APIKey string `yaml:"-"`
}

type ScraperConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	MaxContent    int           `yaml:"max_content"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type EncyclopediaConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`

	// CacheDir selects a persistent cache. Empty keeps it in memory.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

type AnalyzerConfig struct {
	DynamicProbe bool          `yaml:"dynamic_probe"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ProbeMemoryLimit caps each probe process, in bytes.
	ProbeMemoryLimit uint64 `yaml:"probe_memory_limit"`

	// ProbeConcurrency bounds probe processes running at once. Requests
	// that find no free slot within ProbeTimeout are analysed without
	// the probe.
	ProbeConcurrency int `yaml:"probe_concurrency"`

	StrictHTML       bool          `yaml:"strict_html"`
	HTMLTagTolerance int           `yaml:"html_tag_tolerance"`
	DisabledRules    []string      `yaml:"disabled_rules"`
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter"`
	MetricExporter string `yaml:"metric_exporter"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			StaticDir:       "public",
			ShutdownTimeout: 10 * time.Second,
			RatePerSecond:   5,
			Burst:           10,
		},
		LLM: LLMConfig{
			Backend:    BackendAnthropic,
			Model:      DefaultAnthropicModel,
			MaxTokens:  4096,
			Timeout:    60 * time.Second,
			APIKeyFile: DefaultSecretPath,
		},
		Scraper: ScraperConfig{
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxContent:    15000,
			Timeout:       20 * time.Second,
			RatePerSecond: 2,
			Burst:         4,
		},
		Encyclopedia: EncyclopediaConfig{
			BaseURL:  "https://en.wikipedia.org/w/api.php",
			CacheTTL: 30 * time.Minute,
			Timeout:  15 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			DynamicProbe:     true,
			ProbeTimeout:     time.Second,
			ProbeMemoryLimit: 256 << 20,
			ProbeConcurrency: 4,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		fail("server.port %d out of range", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		fail("server.shutdown_timeout must not be negative")
	}
	if c.Server.RatePerSecond < 0 {
		fail("server.rate_per_second must not be negative")
	}
	if c.Server.RatePerSecond > 0 && c.Server.Burst < 1 {
		fail("server.burst must be at least 1")
	}

	switch c.LLM.Backend {
	case BackendAnthropic, BackendOpenAI:
	default:
		fail("llm.backend %q unknown", c.LLM.Backend)
	}
	if c.LLM.MaxTokens < 1 {
		fail("llm.max_tokens must be positive")
	}
	if c.LLM.Timeout < 0 {
		fail("llm.timeout must not be negative")
	}

	if c.Scraper.MaxContent < 1 {
		fail("scraper.max_content must be positive")
	}
	if c.Scraper.Timeout < 0 {
		fail("scraper.timeout must not be negative")
	}
	if c.Scraper.RatePerSecond < 0 {
		fail("scraper.rate_per_second must not be negative")
	}
	if c.Scraper.RatePerSecond > 0 && c.Scraper.Burst < 1 {
		fail("scraper.burst must be at least 1")
	}

	if c.Encyclopedia.BaseURL == "" {
		fail("encyclopedia.base_url is required")
	}
	if c.Encyclopedia.CacheTTL < 0 || c.Encyclopedia.Timeout < 0 {
		fail("encyclopedia durations must not be negative")
	}

	if c.Analyzer.DynamicProbe && c.Analyzer.ProbeTimeout <= 0 {
		fail("analyzer.probe_timeout must be positive when dynamic_probe is on")
	}
	if c.Analyzer.DynamicProbe && c.Analyzer.ProbeMemoryLimit < 16<<20 {
		fail("analyzer.probe_memory_limit must be at least 16MiB when dynamic_probe is on")
	}
	if c.Analyzer.DynamicProbe && c.Analyzer.ProbeConcurrency < 1 {
		fail("analyzer.probe_concurrency must be at least 1 when dynamic_probe is on")
	}
	if c.Analyzer.HTMLTagTolerance < 0 {
		fail("analyzer.html_tag_tolerance must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		fail("telemetry.trace_exporter %q unknown", c.Telemetry.TraceExporter)
	}
	switch c.Telemetry.MetricExporter {
	case "prometheus", "stdout", "none":
	default:
		fail("telemetry.metric_exporter %q unknown", c.Telemetry.MetricExporter)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
