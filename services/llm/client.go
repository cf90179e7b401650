// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm relays chat conversations to a hosted language model.
//
// Two backends implement ChatClient: Anthropic's Messages API (the
// default) and OpenAI's Chat Completions API. Both return the reply in
// the Anthropic message shape so the HTTP layer can pass it through
// unchanged.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest is a relay request.
type ChatRequest struct {
	// Messages is the conversation so far, oldest first.
	Messages []Message

	// System is an optional system prompt.
	System string

	// MaxTokens caps the reply length. Zero selects the client default.
	MaxTokens int
}

// ContentBlock is one block of a reply.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatResponse is the model reply in the Anthropic message shape.
type ChatResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`

	// Raw is the upstream body when the backend already speaks this
	// shape. Relays should prefer it so unknown fields survive.
	Raw json.RawMessage `json:"-"`
}

// Text concatenates the text blocks of the reply.
func (r *ChatResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// ChatClient sends a conversation to a model and returns its reply.
//
// Implementations return *UpstreamError when the provider answers with a
// non-2xx status.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// HTTPClient is the subset of *http.Client the backends use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
