//go:build !whisper

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
)

// ErrWhisperDisabled is returned when the binary was built without the whisper tag
var ErrWhisperDisabled = errors.New("whisper transcription disabled (build with -tags whisper to enable)")

// WhisperTranscriber is a stub used when whisper.cpp is not linked in
type WhisperTranscriber struct{}

// NewWhisperTranscriber always fails in builds without whisper
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	return nil, ErrWhisperDisabled
}

// Transcribe implements Transcriber
func (w *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return "", ErrWhisperDisabled
}

// Close implements Transcriber
func (w *WhisperTranscriber) Close() error {
	return nil
}
