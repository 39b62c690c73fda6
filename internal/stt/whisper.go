//go:build whisper

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

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// WhisperTranscriber runs whisper.cpp in-process
type WhisperTranscriber struct {
	model    whisper.Model
	language string
	mu       sync.Mutex
}

// NewWhisperTranscriber loads the model at modelPath
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logging.Sugar.Infow("✅ Whisper model loaded", "model", modelPath)
	return &WhisperTranscriber{model: model, language: language}, nil
}

// Transcribe implements Transcriber. whisper expects 16 kHz input.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if sampleRate != whisper.SampleRate {
		return "", fmt.Errorf("whisper requires %d Hz audio, got %d", whisper.SampleRate, sampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	lang := w.language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(uint(runtime.NumCPU()))

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var transcript strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		transcript.WriteString(segment.Text)
		transcript.WriteByte(' ')
	}

	return strings.TrimSpace(transcript.String()), nil
}

// Close releases the model
func (w *WhisperTranscriber) Close() error {
	if w.model == nil {
		return nil
	}
	logging.Sugar.Info("🧠 Whisper model closed")
	return w.model.Close()
}
