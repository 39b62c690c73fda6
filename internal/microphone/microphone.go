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

package microphone

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/audio"
	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// dropLogEvery controls how often queue overflows are reported
const dropLogEvery = 20

// Microphone streams 16-bit mono PCM blocks from an input device into a queue
type Microphone struct {
	cfg    config.AudioConfig
	queue  *audio.Queue
	stream *portaudio.Stream
	mu     sync.Mutex
}

// New initializes PortAudio. Close must be called to release it.
func New(cfg config.AudioConfig, queue *audio.Queue) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{cfg: cfg, queue: queue}, nil
}

// Start opens the input stream and begins delivering blocks
func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	params, err := m.streamParameters()
	if err != nil {
		return err
	}

	stream, err := portaudio.OpenStream(params, m.onBlock)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	m.stream = stream
	logging.Sugar.Infow("🎙️ Microphone started",
		"device", params.Input.Device.Name,
		"sample_rate", m.cfg.SampleRate,
		"block_size", m.cfg.BlockSize,
	)
	return nil
}

func (m *Microphone) streamParameters() (portaudio.StreamParameters, error) {
	var dev *portaudio.DeviceInfo
	if m.cfg.Device < 0 {
		d, err := portaudio.DefaultInputDevice()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("no default input device: %w", err)
		}
		dev = d
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to list audio devices: %w", err)
		}
		if m.cfg.Device >= len(devices) {
			return portaudio.StreamParameters{}, fmt.Errorf("audio device %d not found (%d devices)", m.cfg.Device, len(devices))
		}
		dev = devices[m.cfg.Device]
	}

	if dev.MaxInputChannels < 1 {
		return portaudio.StreamParameters{}, fmt.Errorf("audio device %q has no input channels", dev.Name)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.cfg.SampleRate)
	params.FramesPerBuffer = m.cfg.BlockSize
	return params, nil
}

// onBlock runs on the PortAudio callback thread
func (m *Microphone) onBlock(in []int16) {
	if m.queue.Push(audio.FromInt16(in)) {
		return
	}
	if dropped := m.queue.Dropped(); dropped%dropLogEvery == 1 {
		logging.LogWarn("Audio queue full, dropping blocks", zap.Uint64("dropped_total", dropped))
	}
}

// Stop halts the stream. The queue stays open so queued blocks can still be read.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	err := m.stream.Stop()
	if cerr := m.stream.Close(); err == nil {
		err = cerr
	}
	m.stream = nil

	if err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// Close stops the stream and terminates PortAudio
func (m *Microphone) Close() error {
	err := m.Stop()
	if terr := portaudio.Terminate(); err == nil && terr != nil {
		err = fmt.Errorf("failed to terminate portaudio: %w", terr)
	}
	return err
}
