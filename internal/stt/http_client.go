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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// HTTPTranscriber sends utterances to any OpenAI-compatible transcription service
type HTTPTranscriber struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewHTTPTranscriber creates a client and verifies the service answers /health
func NewHTTPTranscriber(ctx context.Context, baseURL, language string, timeout time.Duration) (*HTTPTranscriber, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	t := &HTTPTranscriber{
		baseURL:    baseURL,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}

	if err := t.healthCheck(ctx); err != nil {
		return nil, fmt.Errorf("STT service health check failed: %w", err)
	}

	logging.Sugar.Infow("Connected to STT REST service", "base_url", baseURL)
	return t, nil
}

func (t *HTTPTranscriber) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to STT service at %s: %w", t.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("STT service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Transcribe implements Transcriber
func (t *HTTPTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", errors.New("empty audio data")
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	wavData, err := encodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode audio as WAV: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	_ = writer.WriteField("model", "whisper-1")
	_ = writer.WriteField("language", t.language)
	_ = writer.WriteField("temperature", "0.0")
	_ = writer.WriteField("response_format", "json")

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, string(msg))
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse transcription response: %w", err)
	}

	logging.Logger.Debug("Transcription completed",
		zap.String("component", "stt"),
		zap.Int64("processing_time_ms", time.Since(start).Milliseconds()),
		zap.Int("text_length", len(result.Text)),
	)
	return result.Text, nil
}

// Close implements Transcriber
func (t *HTTPTranscriber) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// encodeWAV renders samples as 16-bit mono PCM WAV
func encodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the WAV encoder needs to patch its header
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
