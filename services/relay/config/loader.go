// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. With no
// arguments it reads ./.env. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration.
//
// Description:
//
//	Starts from Default, decodes path over it when path is non-empty,
//	applies environment overrides, resolves the API key and validates.
//
// Inputs:
//
//	path - YAML file. Empty means defaults plus environment only.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Read, parse or ErrInvalidConfig failures.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := resolveAPIKey(&cfg.LLM); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q is not a number", ErrInvalidConfig, v)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		backend := strings.ToLower(strings.TrimSpace(v))
		if backend == BackendOpenAI && cfg.LLM.Model == DefaultAnthropicModel {
			cfg.LLM.Model = DefaultOpenAIModel
		}
		cfg.LLM.Backend = backend
	}
	switch cfg.LLM.Backend {
	case BackendAnthropic:
		setIfPresent(&cfg.LLM.Model, "CLAUDE_MODEL")
	case BackendOpenAI:
		setIfPresent(&cfg.LLM.Model, "OPENAI_MODEL")
	}

	setIfPresent(&cfg.Telemetry.TraceExporter, "OTEL_TRACES_EXPORTER")
	setIfPresent(&cfg.Telemetry.MetricExporter, "OTEL_METRICS_EXPORTER")
	setIfPresent(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setIfPresent(&cfg.Log.Level, "LOG_LEVEL")
	return nil
}

// resolveAPIKey picks the key for the configured backend. The Anthropic
// key falls back to APIKeyFile when the env var is empty.
func resolveAPIKey(llm *LLMConfig) error {
	switch llm.Backend {
	case BackendOpenAI:
		llm.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		return nil
	case BackendAnthropic:
		llm.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	default:
		return nil
	}
	if llm.APIKey != "" || llm.APIKeyFile == "" {
		return nil
	}

	data, err := os.ReadFile(llm.APIKeyFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read api key file: %w", err)
	}
	llm.APIKey = strings.TrimSpace(string(data))
	return nil
}

func setIfPresent(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
