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
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"go.uber.org/zap"
)

// Control frames accepted on the log stream
const (
	StreamStart = "start"
	StreamStop  = "stop"
)

const streamWriteTimeout = 10 * time.Second

// LogSource fans out console lines to subscribers
type LogSource interface {
	Subscribe() (<-chan string, func())
}

// LogFrame is one console line pushed to the client
type LogFrame struct {
	Timestamp string `json:"timestamp"`
	Output    string `json:"output"`
}

// LogStreamHandler serves /ws/logs. The client sends "start" to begin the
// live console pass-through and "stop" to end it.
type LogStreamHandler struct {
	source   LogSource
	upgrader websocket.Upgrader
}

// NewLogStreamHandler creates a new log stream handler
func NewLogStreamHandler(source LogSource) *LogStreamHandler {
	return &LogStreamHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP upgrades the connection and runs the stream until the client leaves
func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogWarn("Log stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	commands := make(chan string)
	go func() {
		defer close(commands)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case commands <- strings.ToLower(strings.TrimSpace(string(msg))):
			case <-done:
				return
			}
		}
	}()

	var lines <-chan string
	unsubscribe := func() {}
	defer func() { unsubscribe() }()

	logging.Logger.Debug("Log stream client connected", zap.String("remote", r.RemoteAddr))

	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				logging.Logger.Debug("Log stream client disconnected", zap.String("remote", r.RemoteAddr))
				return
			}
			switch cmd {
			case StreamStart:
				if lines == nil {
					lines, unsubscribe = h.source.Subscribe()
				}
			case StreamStop:
				unsubscribe()
				lines, unsubscribe = nil, func() {}
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			frame := LogFrame{
				Timestamp: time.Now().Format(time.RFC3339),
				Output:    line,
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
