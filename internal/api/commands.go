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
	"strconv"
	"strings"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/events"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/storage"
	"go.uber.org/zap"
)

// MaxPageSize caps the page_size query parameter
const MaxPageSize = 100

// CommandStore is the read side of the command history
type CommandStore interface {
	GetByUUID(uuid string) (*events.CommandEvent, error)
	List(options storage.ListOptions) ([]*events.CommandEvent, error)
	Count(options storage.ListOptions) (int64, error)
}

// CommandsHandler handles HTTP requests for command history
type CommandsHandler struct {
	store CommandStore
}

// NewCommandsHandler creates a new command history handler
func NewCommandsHandler(store CommandStore) *CommandsHandler {
	return &CommandsHandler{store: store}
}

// ListCommandsResponse represents the response for listing command events
type ListCommandsResponse struct {
	Events     []*events.CommandEvent `json:"events"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// HandleCommands handles GET /api/commands
func (h *CommandsHandler) HandleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	options := storage.ListOptions{
		Intent:    query.Get("intent"),
		Source:    query.Get("source"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}

	if successStr := query.Get("success"); successStr != "" {
		success, err := strconv.ParseBool(successStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "success must be a boolean")
			return
		}
		options.Success = &success
	}

	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count command events")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	commandEvents, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list command events")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	logging.Sugar.Debugw("Command history API request",
		"page", page,
		"page_size", pageSize,
		"total_results", total,
		"intent", options.Intent,
		"source", options.Source,
	)

	writeJSON(w, http.StatusOK, ListCommandsResponse{
		Events:     commandEvents,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// HandleCommandByID handles GET /api/commands/{uuid}
func (h *CommandsHandler) HandleCommandByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/commands/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "event ID is required")
		return
	}

	event, err := h.store.GetByUUID(id)
	if errors.Is(err, storage.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "command event not found")
		return
	}
	if err != nil {
		logging.LogError(err, "Failed to get command event", zap.String("uuid", id))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, event)
}
