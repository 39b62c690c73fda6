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

import "context"

// Transcriber turns one complete utterance into text.
// Samples are mono float32 in [-1, 1].
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
	Close() error
}

// Source turns a stream of audio blocks into finalized transcripts
type Source interface {
	// Feed consumes one block and returns a normalized transcript when the
	// block completes an utterance.
	Feed(ctx context.Context, block []byte) (string, bool)

	// Reset discards any partially captured utterance
	Reset()
}
