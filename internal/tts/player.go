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
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// Player plays synthesized audio to completion
type Player interface {
	Play(ctx context.Context, audio *Audio) error
}

// Format is a container format the player can decode
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatVorbis  Format = "vorbis"
)

// DetectFormat picks a decoder from the magic bytes, falling back to the content type
func DetectFormat(data []byte, contentType string) Format {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(data, []byte("ID3")),
		len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return FormatMP3
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "vorbis"):
		return FormatVorbis
	}
	return FormatUnknown
}

// SpeakerPlayer plays audio on the default output device
type SpeakerPlayer struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
}

// NewSpeakerPlayer creates a player. The output device is opened on first use.
func NewSpeakerPlayer() *SpeakerPlayer {
	return &SpeakerPlayer{}
}

// Play implements Player. Anything still playing is cut off first.
func (p *SpeakerPlayer) Play(ctx context.Context, audio *Audio) error {
	streamer, format, err := decode(audio)
	if err != nil {
		return err
	}
	defer func() { _ = streamer.Close() }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("failed to open audio output: %w", err)
		}
		p.sampleRate = format.SampleRate
	}

	speaker.Clear()

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(audio *Audio) (beep.StreamSeekCloser, beep.Format, error) {
	rc := io.NopCloser(bytes.NewReader(audio.Data))

	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch DetectFormat(audio.Data, audio.ContentType) {
	case FormatWAV:
		s, f, err = wav.Decode(rc)
	case FormatMP3:
		s, f, err = mp3.Decode(rc)
	case FormatVorbis:
		s, f, err = vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, errors.New("unsupported audio format")
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio: %w", err)
	}
	return s, f, nil
}
