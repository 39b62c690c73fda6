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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command sources
const (
	SourceClassifier = "classifier"
	SourceLLM        = "llm"
	SourceFallback   = "fallback"
	SourceRecording  = "recording"
)

// CommandEvent records one finalized command from transcript to spoken reply
type CommandEvent struct {
	UUID      string    `json:"uuid" db:"uuid"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	Transcript string  `json:"transcript" db:"transcript"`
	Intent     string  `json:"intent" db:"intent"`
	Confidence float64 `json:"confidence" db:"confidence"`
	Source     string  `json:"source" db:"source"`

	Action         string `json:"action,omitempty" db:"action"`
	Response       string `json:"response" db:"response"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
}

// NewCommandEvent creates an event stamped with a fresh UUID and the current time
func NewCommandEvent(transcript string) *CommandEvent {
	return &CommandEvent{
		UUID:       uuid.NewString(),
		Timestamp:  time.Now(),
		Transcript: transcript,
		Success:    true,
	}
}

// SetResolution records how the command was classified
func (e *CommandEvent) SetResolution(source, intent string, confidence float64) {
	e.Source = source
	e.Intent = intent
	e.Confidence = confidence
}

// SetResponse records the spoken reply and the action taken, if any
func (e *CommandEvent) SetResponse(action, response string) {
	e.Action = action
	e.Response = response
	e.ProcessingTime = time.Since(e.Timestamp).Milliseconds()
}

// SetError marks the event as failed
func (e *CommandEvent) SetError(err error) {
	if err == nil {
		return
	}
	e.Success = false
	e.ErrorMessage = err.Error()
	e.ProcessingTime = time.Since(e.Timestamp).Milliseconds()
}

// IsValid performs basic validation on the event
func (e *CommandEvent) IsValid() error {
	if e.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if _, err := uuid.Parse(e.UUID); err != nil {
		return fmt.Errorf("invalid UUID: %w", err)
	}

	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	switch e.Source {
	case SourceClassifier, SourceLLM, SourceFallback, SourceRecording:
	default:
		return fmt.Errorf("unknown source %q", e.Source)
	}

	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}

	return nil
}

// String returns a human-readable representation of the event
func (e *CommandEvent) String() string {
	return fmt.Sprintf("CommandEvent{UUID: %s, Source: %s, Intent: %s, Transcript: %q, Confidence: %.2f, Success: %t}",
		e.UUID, e.Source, e.Intent, e.Transcript, e.Confidence, e.Success)
}

// DeviceCommandEvent is published when an actuator is driven over the message bus
type DeviceCommandEvent struct {
	Device    string  `json:"device"`
	Action    string  `json:"action"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}
