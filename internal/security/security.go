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

package security

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidRecordingName is returned when a recording file name is not a bare recording_*.txt name
	ErrInvalidRecordingName = errors.New("invalid recording name")

	recordingNamePattern = regexp.MustCompile(`^recording_[0-9A-Za-z_-]+\.txt$`)
)

// SanitizeLogInput removes newline characters to prevent log injection attacks.
// Transcripts and classifier replies pass through here before they are logged.
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateRecordingName ensures a requested recording file name cannot escape
// the recordings directory.
func ValidateRecordingName(name string) error {
	if name == "" {
		return ErrInvalidRecordingName
	}

	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return ErrInvalidRecordingName
	}

	if filepath.Base(name) != name {
		return ErrInvalidRecordingName
	}

	if !recordingNamePattern.MatchString(name) {
		return ErrInvalidRecordingName
	}

	return nil
}
