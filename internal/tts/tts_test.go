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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/config"
)

type mockSynthesizer struct {
	audio *Audio
	err   error
	texts []string
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	m.texts = append(m.texts, text)
	return m.audio, m.err
}

type mockPlayer struct {
	played []*Audio
	err    error
}

func (m *mockPlayer) Play(ctx context.Context, audio *Audio) error {
	m.played = append(m.played, audio)
	return m.err
}

func TestHTTPSynthesizer_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "text/plain" {
			t.Errorf("Content-Type = %q, want text/plain", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Accept") != "audio/wav" {
			t.Errorf("Accept = %q, want audio/wav", r.Header.Get("Accept"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "LED two turned on" {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF....WAVEfmt "))
	}))
	defer server.Close()

	synth, err := NewHTTPSynthesizer(config.TTSConfig{URL: server.URL, Timeout: time.Second, MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("NewHTTPSynthesizer() error = %v", err)
	}

	audio, err := synth.Synthesize(context.Background(), "LED two turned on")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if audio.ContentType != "audio/wav" || !strings.HasPrefix(string(audio.Data), "RIFF") {
		t.Errorf("Synthesize() = %q (%s)", audio.Data, audio.ContentType)
	}
}

func TestHTTPSynthesizer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "voice not found", http.StatusInternalServerError)
			},
		},
		{
			name:    "Empty audio",
			handler: func(w http.ResponseWriter, r *http.Request) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			synth, _ := NewHTTPSynthesizer(config.TTSConfig{URL: server.URL, Timeout: time.Second})
			if _, err := synth.Synthesize(context.Background(), "hello"); err == nil {
				t.Error("Synthesize() expected error")
			}
		})
	}

	if _, err := NewHTTPSynthesizer(config.TTSConfig{}); err == nil {
		t.Error("NewHTTPSynthesizer() expected error for empty URL")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		want        Format
	}{
		{"WAV magic", []byte("RIFF\x00\x00\x00\x00WAVE"), "", FormatWAV},
		{"Ogg magic", []byte("OggS\x00\x02"), "application/octet-stream", FormatVorbis},
		{"ID3 tag", []byte("ID3\x04\x00"), "", FormatMP3},
		{"MPEG frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "", FormatMP3},
		{"Content type wins without magic", []byte("????"), "audio/x-wav", FormatWAV},
		{"MPEG content type", []byte("????"), "audio/mpeg", FormatMP3},
		{"Unknown", []byte("????"), "text/plain", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data, tt.contentType); got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode_RejectsUnknownFormat(t *testing.T) {
	if _, _, err := decode(&Audio{Data: []byte("not audio")}); err == nil {
		t.Error("decode() expected error")
	}
}

func TestVoice_Speak(t *testing.T) {
	audio := &Audio{Data: []byte("RIFF"), ContentType: "audio/wav"}

	t.Run("Synthesizes and plays", func(t *testing.T) {
		synth := &mockSynthesizer{audio: audio}
		player := &mockPlayer{}
		v := NewVoice(synth, player)

		if err := v.Speak(context.Background(), "Fan turned off"); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
		if len(synth.texts) != 1 || synth.texts[0] != "Fan turned off" {
			t.Errorf("synthesized %v", synth.texts)
		}
		if len(player.played) != 1 || player.played[0] != audio {
			t.Errorf("played %v", player.played)
		}
	})

	t.Run("Empty text is a no-op", func(t *testing.T) {
		synth := &mockSynthesizer{audio: audio}
		v := NewVoice(synth, &mockPlayer{})

		if err := v.Speak(context.Background(), ""); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
		if len(synth.texts) != 0 {
			t.Errorf("synthesizer called for empty text")
		}
	})

	t.Run("Synthesis failure skips playback", func(t *testing.T) {
		player := &mockPlayer{}
		v := NewVoice(&mockSynthesizer{err: errors.New("service down")}, player)

		if err := v.Speak(context.Background(), "hello"); err == nil {
			t.Error("Speak() expected error")
		}
		if len(player.played) != 0 {
			t.Error("player called after synthesis failure")
		}
	})

	t.Run("Playback failure is reported", func(t *testing.T) {
		v := NewVoice(&mockSynthesizer{audio: audio}, &mockPlayer{err: errors.New("no device")})

		if err := v.Speak(context.Background(), "hello"); err == nil {
			t.Error("Speak() expected error")
		}
	})
}

func TestLogSpeaker(t *testing.T) {
	if err := (LogSpeaker{}).Speak(context.Background(), "Unknown command"); err != nil {
		t.Errorf("Speak() error = %v", err)
	}
}
