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
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/audio"
	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/security"
)

// EnergySource endpoints utterances by block RMS and hands each completed
// utterance to a Transcriber. Blocks above the speech threshold open or extend
// an utterance; once trailing silence reaches EndpointSilence (or the utterance
// hits MaxUtterance) it is transcribed.
type EnergySource struct {
	transcriber Transcriber
	sampleRate  int
	threshold   float64
	endpoint    time.Duration
	maxLength   time.Duration

	speaking  bool
	silence   time.Duration
	length    time.Duration
	utterance []float32
}

// NewEnergySource creates a source over the given transcriber
func NewEnergySource(cfg config.STTConfig, sampleRate int, transcriber Transcriber) *EnergySource {
	return &EnergySource{
		transcriber: transcriber,
		sampleRate:  sampleRate,
		threshold:   cfg.SpeechThreshold,
		endpoint:    cfg.EndpointSilence,
		maxLength:   cfg.MaxUtterance,
	}
}

// Feed implements Source
func (s *EnergySource) Feed(ctx context.Context, block []byte) (string, bool) {
	b := audio.Block(block)
	samples := b.Float32()
	dur := b.Duration(s.sampleRate)

	if audio.RMS(samples) > s.threshold {
		s.speaking = true
		s.silence = 0
	} else {
		if !s.speaking {
			return "", false
		}
		s.silence += dur
	}

	s.utterance = append(s.utterance, samples...)
	s.length += dur

	if s.silence < s.endpoint && (s.maxLength <= 0 || s.length < s.maxLength) {
		return "", false
	}

	utterance := s.utterance
	s.Reset()
	return s.transcribe(ctx, utterance)
}

func (s *EnergySource) transcribe(ctx context.Context, samples []float32) (string, bool) {
	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, samples, s.sampleRate)
	if err != nil {
		logging.LogError(err, "Transcription failed", zap.Int("samples", len(samples)))
		return "", false
	}

	text = Normalize(text)
	if text == "" {
		return "", false
	}

	logging.Logger.Debug("Transcript finalized",
		zap.String("component", "stt"),
		zap.String("text", security.SanitizeLogInput(text)),
		zap.Duration("latency", time.Since(start)),
	)
	return text, true
}

// Reset implements Source
func (s *EnergySource) Reset() {
	s.speaking = false
	s.silence = 0
	s.length = 0
	s.utterance = nil
}
