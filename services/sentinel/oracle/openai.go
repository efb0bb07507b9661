// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const openAISystemPrompt = "You are a software architecture analysis engine. Always answer with a single JSON object."

// chatCompleter is the part of *openai.Client the backend uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIBackend is a JSONGenerator over the OpenAI chat completions API
// in JSON mode.
type OpenAIBackend struct {
	client chatCompleter
	model  string
}

// NewOpenAIBackend creates a backend for apiKey and model.
func NewOpenAIBackend(apiKey, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
		slog.Warn("oracle model not set, using default", slog.String("model", model))
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey), model: model}, nil
}

// Name implements JSONGenerator.
func (b *OpenAIBackend) Name() string { return "openai:" + b.model }

// GenerateJSON implements JSONGenerator.
func (b *OpenAIBackend) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	full, err := marshalInput(prompt, input)
	if err != nil {
		return nil, err
	}
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: full},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrInvalidResponse)
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
