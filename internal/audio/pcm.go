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

package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is the width of one 16-bit little-endian mono PCM sample
const BytesPerSample = 2

// Block is a fixed-length chunk of 16-bit little-endian mono PCM
type Block []byte

// Samples returns the number of PCM samples in the block
func (b Block) Samples() int {
	return len(b) / BytesPerSample
}

// Duration returns how much audio the block holds at the given sample rate
func (b Block) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Samples()) * time.Second / time.Duration(sampleRate)
}

// Float32 converts the block to normalized samples in [-1, 1]
func (b Block) Float32() []float32 {
	out := make([]float32, b.Samples())
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Ints converts the block to integer samples for encoders that take int buffers
func (b Block) Ints() []int {
	out := make([]int, b.Samples())
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:])))
	}
	return out
}

// FromInt16 packs samples into a block
func FromInt16(samples []int16) Block {
	b := make(Block, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*BytesPerSample:], uint16(s))
	}
	return b
}

// RMS returns the root mean square energy of normalized samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var s float64
	for _, x := range samples {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(samples)))
}
