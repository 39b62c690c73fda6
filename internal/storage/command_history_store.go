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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/events"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"go.uber.org/zap"
)

// ErrEventNotFound is returned when no command event has the requested UUID
var ErrEventNotFound = errors.New("command event not found")

const selectColumns = `
		SELECT uuid, timestamp, transcript, intent, confidence, source,
			   action, response, success, error_message, processing_time_ms
		FROM command_events`

// sortColumns maps accepted sort keys to columns
var sortColumns = map[string]string{
	"timestamp":       "timestamp",
	"confidence":      "confidence",
	"processing_time": "processing_time_ms",
}

// CommandHistoryStore handles database operations for command events
type CommandHistoryStore struct {
	db *Database
}

// NewCommandHistoryStore creates a new command history store
func NewCommandHistoryStore(db *Database) *CommandHistoryStore {
	return &CommandHistoryStore{db: db}
}

// Insert stores a new command event
func (s *CommandHistoryStore) Insert(event *events.CommandEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid command event: %w", err)
	}

	query := `
		INSERT INTO command_events (
			uuid, timestamp, transcript, intent, confidence, source,
			action, response, success, error_message, processing_time_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.Timestamp.UnixMilli(), event.Transcript, event.Intent, event.Confidence, event.Source,
		event.Action, event.Response, event.Success, event.ErrorMessage, event.ProcessingTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert command event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "command_events",
		zap.String("uuid", event.UUID),
		zap.String("source", event.Source),
		zap.String("intent", event.Intent))
	return nil
}

// GetByUUID retrieves a command event by its UUID
func (s *CommandHistoryStore) GetByUUID(uuid string) (*events.CommandEvent, error) {
	row := s.db.DB().QueryRow(selectColumns+" WHERE uuid = ?", uuid)
	return scanCommandEvent(row)
}

// List retrieves command events with pagination and filtering
func (s *CommandHistoryStore) List(options ListOptions) ([]*events.CommandEvent, error) {
	query, args := buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query command events: %w", err)
	}
	defer rows.Close()

	eventsList := make([]*events.CommandEvent, 0)
	for rows.Next() {
		event, err := scanCommandEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating command events: %w", err)
	}

	return eventsList, nil
}

// Count returns the number of command events matching the filters.
// Pagination options are ignored.
func (s *CommandHistoryStore) Count(options ListOptions) (int64, error) {
	where, args := buildFilter(options)

	var count int64
	if err := s.db.DB().QueryRow("SELECT COUNT(*) FROM command_events"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count command events: %w", err)
	}
	return count, nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	Intent    string
	Source    string
	Success   *bool // nil = all, true = success only, false = errors only
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "timestamp", "confidence", "processing_time"
	SortOrder string // "ASC", "DESC"
}

func buildFilter(options ListOptions) (string, []interface{}) {
	where := " WHERE 1=1"
	var args []interface{}

	if options.Intent != "" {
		where += " AND intent = ?"
		args = append(args, options.Intent)
	}

	if options.Source != "" {
		where += " AND source = ?"
		args = append(args, options.Source)
	}

	if options.Success != nil {
		where += " AND success = ?"
		args = append(args, *options.Success)
	}

	if options.StartTime != nil {
		where += " AND timestamp >= ?"
		args = append(args, options.StartTime.UnixMilli())
	}

	if options.EndTime != nil {
		where += " AND timestamp <= ?"
		args = append(args, options.EndTime.UnixMilli())
	}

	return where, args
}

func buildListQuery(options ListOptions) (string, []interface{}) {
	where, args := buildFilter(options)
	query := selectColumns + where

	sortBy, ok := sortColumns[options.SortBy]
	if !ok {
		sortBy = "timestamp"
	}

	sortOrder := "DESC"
	if options.SortOrder == "ASC" || options.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s, uuid %s", sortBy, sortOrder, sortOrder)

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommandEvent(row rowScanner) (*events.CommandEvent, error) {
	var event events.CommandEvent
	var timestamp int64

	err := row.Scan(
		&event.UUID, &timestamp, &event.Transcript, &event.Intent, &event.Confidence, &event.Source,
		&event.Action, &event.Response, &event.Success, &event.ErrorMessage, &event.ProcessingTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	event.Timestamp = time.UnixMilli(timestamp)
	return &event, nil
}
