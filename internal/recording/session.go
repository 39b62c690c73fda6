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

package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// Spoken control phrases, matched against the whole normalized transcript
const (
	PhraseEnable      = "enable recording mode"
	PhraseEnableShort = "enable recording mod"
	PhraseDisable     = "disable recording mode"
)

// FileLayout is the timestamp layout embedded in recording file names
const FileLayout = "02-01-2006_15-04-05"

// Control is a recognized recording control phrase
type Control int

const (
	NoControl Control = iota
	Enable
	Disable
)

// Match reports which control phrase, if any, the transcript is
func Match(transcript string) Control {
	switch strings.ToLower(strings.TrimSpace(transcript)) {
	case PhraseEnable, PhraseEnableShort:
		return Enable
	case PhraseDisable:
		return Disable
	default:
		return NoControl
	}
}

// Result describes the outcome of a control phrase
type Result struct {
	Message string // text to speak
	Changed bool   // whether the session state changed
	Path    string // file written on disable
	Err     error  // write failure on disable
}

// Session captures every transcript while active and writes them to a
// timestamped file when disabled. It is owned by the assistant loop.
type Session struct {
	dir string
	now func() time.Time

	active   bool
	log      []string
	filename string
}

// NewSession creates an inactive session writing into dir. A nil clock uses time.Now.
func NewSession(dir string, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{dir: dir, now: clock}
}

// Active reports whether transcripts are being captured
func (s *Session) Active() bool {
	return s.active
}

// Filename returns the file assigned to the current activation
func (s *Session) Filename() string {
	return s.filename
}

// Lines returns a copy of the captured transcripts
func (s *Session) Lines() []string {
	return append([]string(nil), s.log...)
}

// Append records a transcript when the session is active
func (s *Session) Append(transcript string) {
	if !s.active || transcript == "" {
		return
	}
	s.log = append(s.log, transcript)
}

// Enable starts a new capture. A second Enable leaves the session untouched.
func (s *Session) Enable() Result {
	if s.active {
		logging.LogRecording("enable_ignored", zap.String("filename", s.filename))
		return Result{Message: "Recording mode is already enabled."}
	}

	s.active = true
	s.log = nil
	s.filename = s.nextFilename()

	logging.LogRecording("enabled", zap.String("filename", s.filename))
	return Result{Message: "Recording mode enabled. All speech will be saved.", Changed: true}
}

// Disable ends the capture and flushes it to disk. The session becomes
// inactive even when the write fails.
func (s *Session) Disable() Result {
	if !s.active {
		return Result{Message: "Recording mode is not enabled."}
	}

	filename := s.filename
	lines := s.log
	s.active = false
	s.log = nil
	s.filename = ""

	path := filepath.Join(s.dir, filename)
	if err := writeLines(path, lines); err != nil {
		logging.LogError(err, "Failed to save recording", zap.String("path", path))
		return Result{Message: "Error saving recording.", Changed: true, Err: err}
	}

	logging.LogRecording("disabled",
		zap.String("filename", filename),
		zap.Int("lines", len(lines)),
	)
	return Result{
		Message: fmt.Sprintf("Recording mode disabled. Text saved to %s.", filename),
		Changed: true,
		Path:    path,
	}
}

// nextFilename picks a timestamped name, suffixing it when a file from the
// same second already exists.
func (s *Session) nextFilename() string {
	base := "recording_" + s.now().Format(FileLayout)
	name := base + ".txt"
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			return name
		}
		name = fmt.Sprintf("%s_%d.txt", base, i)
	}
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}
