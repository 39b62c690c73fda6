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
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/security"
)

// Voice synthesizes text and plays it back
type Voice struct {
	synth  Synthesizer
	player Player
}

// NewVoice combines a synthesizer and a player
func NewVoice(synth Synthesizer, player Player) *Voice {
	return &Voice{synth: synth, player: player}
}

// Speak implements Speaker
func (v *Voice) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	start := time.Now()
	audio, err := v.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := v.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}

	logging.LogTTSOperation("spoken",
		zap.String("text", security.SanitizeLogInput(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// LogSpeaker only logs what would have been spoken
type LogSpeaker struct{}

// Speak implements Speaker
func (LogSpeaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	logging.LogTTSOperation("spoken_to_log", zap.String("text", security.SanitizeLogInput(text)))
	return nil
}
