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

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/recording"
	"github.com/loqalabs/loqa-assistant/internal/security"
	"go.uber.org/zap"
)

// RecordingsHandler serves saved recording files
type RecordingsHandler struct {
	archive *recording.Archive
}

// NewRecordingsHandler creates a new recordings handler
func NewRecordingsHandler(archive *recording.Archive) *RecordingsHandler {
	return &RecordingsHandler{archive: archive}
}

// ListRecordingsResponse represents the response for listing recordings
type ListRecordingsResponse struct {
	Recordings []recording.Info `json:"recordings"`
	Total      int              `json:"total"`
}

// HandleRecordings handles GET /api/recordings
func (h *RecordingsHandler) HandleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	recordings, err := h.archive.List()
	if err != nil {
		logging.LogError(err, "Failed to list recordings")
		writeError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	writeJSON(w, http.StatusOK, ListRecordingsResponse{
		Recordings: recordings,
		Total:      len(recordings),
	})
}

// HandleRecordingByName handles GET /api/recordings/{filename}
func (h *RecordingsHandler) HandleRecordingByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	content, err := h.archive.Read(filename)
	switch {
	case errors.Is(err, security.ErrInvalidRecordingName):
		writeError(w, http.StatusBadRequest, "invalid recording name")
		return
	case errors.Is(err, recording.ErrRecordingNotFound):
		writeError(w, http.StatusNotFound, "recording not found")
		return
	case err != nil:
		logging.LogError(err, "Failed to read recording",
			zap.String("filename", security.SanitizeLogInput(filename)))
		writeError(w, http.StatusInternalServerError, "failed to read recording")
		return
	}

	logging.LogRecording("read", zap.String("filename", content.Filename))
	writeJSON(w, http.StatusOK, content)
}
