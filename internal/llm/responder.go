/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// ChatResponder answers commands the classifier could not place using an
// OpenAI-compatible chat completion endpoint.
type ChatResponder struct {
	client      openai.Client
	model       string
	style       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewChatResponder creates a responder from config. Requests go through a
// SOCKS5 proxy when one is configured.
func NewChatResponder(cfg config.LLMConfig) (*ChatResponder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key not configured")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Proxy != "" {
		httpClient, err := NewSocksClient(cfg.Proxy, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to configure LLM proxy: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	logging.Sugar.Infow("LLM fallback enabled",
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
		"proxied", cfg.Proxy != "",
	)

	return &ChatResponder{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		style:       cfg.Style,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Respond sends the command with the response style directive and returns the reply text
func (r *ChatResponder) Respond(ctx context.Context, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if r.style != "" {
		messages = append(messages, openai.SystemMessage(r.style))
	}
	messages = append(messages, openai.UserMessage(prompt))

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(r.model),
		Messages:            messages,
		Temperature:         openai.Float(r.temperature),
		MaxCompletionTokens: openai.Int(int64(r.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	logging.Logger.Debug("LLM reply received",
		zap.String("component", "llm"),
		zap.String("model", r.model),
		zap.Int("reply_length", len(reply)),
		zap.Duration("latency", time.Since(start)),
	)
	return reply, nil
}
