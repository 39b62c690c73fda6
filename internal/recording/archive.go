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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/security"
)

// ErrRecordingNotFound is returned when a requested recording does not exist
var ErrRecordingNotFound = errors.New("recording not found")

// Info describes a saved recording file
type Info struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Content is a saved recording with its text
type Content struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	LineCount int    `json:"line_count"`
}

// Archive reads saved recordings from a directory
type Archive struct {
	dir string
}

// NewArchive creates an archive over dir
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the directory the archive reads from
func (a *Archive) Dir() string {
	return a.dir
}

// List returns every recording_*.txt file, newest first
func (a *Archive) List() ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(a.dir, "recording_*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	recordings := make([]Info, 0, len(matches))
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		recordings = append(recordings, Info{
			Filename: fi.Name(),
			Size:     fi.Size(),
			Modified: fi.ModTime(),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		if recordings[i].Modified.Equal(recordings[j].Modified) {
			return recordings[i].Filename > recordings[j].Filename
		}
		return recordings[i].Modified.After(recordings[j].Modified)
	})

	return recordings, nil
}

// Read returns one recording by file name
func (a *Archive) Read(filename string) (*Content, error) {
	if err := security.ValidateRecordingName(filename); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(a.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	content := string(data)
	lines := 0
	if content != "" {
		lines = strings.Count(content, "\n") + 1
	}

	return &Content{Filename: filename, Content: content, LineCount: lines}, nil
}
