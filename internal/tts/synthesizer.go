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

package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// Speaker says text out loud. Implementations must treat empty text as a no-op.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Audio is synthesized speech ready for playback
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer converts text to audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// HTTPSynthesizer posts plain text to a text-to-speech endpoint and reads
// back an audio file.
type HTTPSynthesizer struct {
	url       string
	client    *http.Client
	semaphore chan struct{}
}

// NewHTTPSynthesizer creates a synthesizer from config
func NewHTTPSynthesizer(cfg config.TTSConfig) (*HTTPSynthesizer, error) {
	if cfg.URL == "" {
		return nil, errors.New("TTS URL cannot be empty")
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	logging.Sugar.Infow("🔊 TTS client initialized",
		"url", cfg.URL,
		"max_concurrent", maxConcurrent,
	)

	return &HTTPSynthesizer{
		url:       cfg.URL,
		client:    &http.Client{Timeout: cfg.Timeout},
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Synthesize implements Synthesizer
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, errors.New("TTS synthesis queue full, request timed out")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("TTS service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("TTS service returned no audio")
	}

	logging.LogTTSOperation("synthesize",
		zap.Int("text_length", len(text)),
		zap.Int("audio_bytes", len(data)),
		zap.Duration("latency", time.Since(start)),
	)

	return &Audio{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
