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

// Package command implements wake-word gated command capture.
//
// The Buffer is a two-state machine. While Idle it waits for a transcript
// whose first token is the wake word. While Capturing it appends every
// transcript and finalizes once no speech has arrived for the silence
// timeout. The Buffer has no side effects: callers act on the returned
// Event (indicator, source reset, dispatch).
package command

import (
	"strings"
	"time"
)

// State of the capture machine
type State int

const (
	Idle State = iota
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// EventKind describes what a transcript or tick did to the buffer
type EventKind int

const (
	// None means the buffer did not change
	None EventKind = iota
	// WakeDetected means the machine entered Capturing
	WakeDetected
	// Appended means words were added while Capturing
	Appended
	// Finalized means Command holds a complete non-empty command
	Finalized
	// Dropped means the silence timeout expired with an empty buffer
	Dropped
)

func (k EventKind) String() string {
	switch k {
	case None:
		return "none"
	case WakeDetected:
		return "wake_detected"
	case Appended:
		return "appended"
	case Finalized:
		return "finalized"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event is the result of feeding the buffer
type Event struct {
	Kind    EventKind
	Command string
}

// Clock returns the current time
type Clock func() time.Time

// Buffer accumulates the words spoken after the wake word
type Buffer struct {
	wakeWord       string
	silenceTimeout time.Duration
	now            Clock

	state          State
	words          []string
	lastSpeechTime time.Time
}

// NewBuffer creates an idle buffer. A nil clock uses time.Now.
func NewBuffer(wakeWord string, silenceTimeout time.Duration, clock Clock) *Buffer {
	if clock == nil {
		clock = time.Now
	}
	return &Buffer{
		wakeWord:       strings.ToLower(strings.TrimSpace(wakeWord)),
		silenceTimeout: silenceTimeout,
		now:            clock,
	}
}

// Observe feeds one finalized transcript
func (b *Buffer) Observe(transcript string) Event {
	tokens := strings.Fields(strings.ToLower(transcript))
	if len(tokens) == 0 {
		return Event{Kind: None}
	}

	switch b.state {
	case Idle:
		if tokens[0] != b.wakeWord {
			return Event{Kind: None}
		}
		b.state = Capturing
		b.words = append(b.words[:0], tokens[1:]...)
		b.lastSpeechTime = b.now()
		return Event{Kind: WakeDetected}

	default:
		b.words = append(b.words, tokens...)
		b.lastSpeechTime = b.now()
		return Event{Kind: Appended}
	}
}

// Tick finalizes the command once the silence timeout has elapsed
func (b *Buffer) Tick() Event {
	if b.state != Capturing {
		return Event{Kind: None}
	}
	if b.now().Sub(b.lastSpeechTime) < b.silenceTimeout {
		return Event{Kind: None}
	}

	cmd := strings.Join(b.words, " ")
	b.clear()

	if cmd == "" {
		return Event{Kind: Dropped}
	}
	return Event{Kind: Finalized, Command: cmd}
}

// Remaining returns the silence budget left before Tick finalizes.
// The second result is false while Idle.
func (b *Buffer) Remaining() (time.Duration, bool) {
	if b.state != Capturing {
		return 0, false
	}
	left := b.silenceTimeout - b.now().Sub(b.lastSpeechTime)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Abort returns the buffer to Idle without emitting a command.
// It reports whether a capture was in progress.
func (b *Buffer) Abort() bool {
	wasCapturing := b.state == Capturing
	b.clear()
	return wasCapturing
}

// State returns the current state
func (b *Buffer) State() State {
	return b.state
}

// Words returns a copy of the words captured so far
func (b *Buffer) Words() []string {
	return append([]string(nil), b.words...)
}

func (b *Buffer) clear() {
	b.state = Idle
	b.words = b.words[:0]
	b.lastSpeechTime = time.Time{}
}
