// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/awnumar/memguard"
)

const (
	anthropicAPIVersion   = "2023-06-01"
	anthropicDefaultURL   = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	defaultMaxTokens      = 4096

	// maxUpstreamBody bounds how much of a provider response is read.
	maxUpstreamBody = 8 << 20
)

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// AnthropicClient calls the Anthropic Messages API.
//
// The API key is sealed in a memguard enclave and only decrypted for
// the duration of a request.
//
// Thread Safety: Safe for concurrent use.
type AnthropicClient struct {
	httpClient HTTPClient
	key        *memguard.Enclave
	baseURL    string
	model      string
	maxTokens  int
	logger     *slog.Logger
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicBaseURL overrides the Messages endpoint URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithAnthropicModel sets the model name.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *AnthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAnthropicHTTPClient replaces the HTTP client.
func WithAnthropicHTTPClient(h HTTPClient) AnthropicOption {
	return func(c *AnthropicClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAnthropicMaxTokens sets the default reply cap.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithAnthropicLogger sets the logger.
func WithAnthropicLogger(l *slog.Logger) AnthropicOption {
	return func(c *AnthropicClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewAnthropicClient creates a client for apiKey.
//
// Outputs:
//
//	*AnthropicClient - The client.
//	error - ErrAPIKeyMissing if apiKey is empty.
func NewAnthropicClient(apiKey string, opts ...AnthropicOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	c := &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		key:        memguard.NewEnclave([]byte(apiKey)),
		baseURL:    anthropicDefaultURL,
		model:      anthropicDefaultModel,
		maxTokens:  defaultMaxTokens,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string { return c.model }

// Chat sends the conversation and returns the reply with its raw body.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  req.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	key, err := c.key.Open()
	if err != nil {
		return nil, fmt.Errorf("open API key enclave: %w", err)
	}
	httpReq.Header.Set("x-api-key", key.String())
	key.Destroy()
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	c.logger.Debug("sending chat request", "model", c.model, "messages", len(req.Messages))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("anthropic request rejected", "status", resp.StatusCode)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	out.Raw = json.RawMessage(body)

	c.logger.Debug("chat response received", "chars", len(out.Text()))
	return &out, nil
}
