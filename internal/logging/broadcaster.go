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

package logging

import (
	"strings"
	"sync"
)

// Broadcaster fans encoded log lines out to live subscribers. Slow subscribers
// lose lines rather than stall the logger.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	bufferSize  int
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold bufferSize lines
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Broadcaster{
		subscribers: make(map[chan string]struct{}),
		bufferSize:  bufferSize,
	}
}

// Write implements zapcore.WriteSyncer
func (b *Broadcaster) Write(p []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subscribers) == 0 {
		return len(p), nil
	}

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		for ch := range b.subscribers {
			select {
			case ch <- line:
			default:
			}
		}
	}

	return len(p), nil
}

// Sync implements zapcore.WriteSyncer
func (b *Broadcaster) Sync() error {
	return nil
}

// Subscribe registers a new listener. The returned cancel func must be called
// to release it; the channel is closed afterwards.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, b.bufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// SubscriberCount returns the number of active listeners
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
