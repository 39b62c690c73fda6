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
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	originalLevel := os.Getenv("LOG_LEVEL")
	originalFormat := os.Getenv("LOG_FORMAT")
	defer func() {
		_ = os.Setenv("LOG_LEVEL", originalLevel)
		_ = os.Setenv("LOG_FORMAT", originalFormat)
	}()

	tests := []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "Default values"},
		{name: "Info level console format", logLevel: "info", logFormat: "console"},
		{name: "Debug level JSON format", logLevel: "debug", logFormat: "json"},
		{name: "Invalid format defaults to console", logLevel: "info", logFormat: "invalid"},
		{name: "Invalid level defaults to info", logLevel: "invalid", logFormat: "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				_ = os.Setenv("LOG_LEVEL", tt.logLevel)
			} else {
				_ = os.Unsetenv("LOG_LEVEL")
			}
			if tt.logFormat != "" {
				_ = os.Setenv("LOG_FORMAT", tt.logFormat)
			} else {
				_ = os.Unsetenv("LOG_FORMAT")
			}

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			if Logger == nil {
				t.Error("Logger should not be nil after initialization")
			}
			if Sugar == nil {
				t.Error("Sugar should not be nil after initialization")
			}

			Close()
		})
	}
}

func TestInitializeWithConfig_FeedsLiveStream(t *testing.T) {
	if err := InitializeWithConfig(LogConfig{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("InitializeWithConfig() unexpected error: %v", err)
	}
	defer Close()

	lines, cancel := Live.Subscribe()
	defer cancel()

	Sugar.Infow("wake word detected", "wake_word", "assistant")

	select {
	case line := <-lines:
		if !strings.Contains(line, "wake word detected") {
			t.Errorf("live line = %q, want it to contain the message", line)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a live log line")
	}
}

func TestLoggingFunctions(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)
	Sugar = Logger.Sugar()

	defer func() {
		Logger = zap.NewNop()
		Sugar = Logger.Sugar()
	}()

	fieldsOf := func(entry observer.LoggedEntry) map[string]interface{} {
		fields := make(map[string]interface{})
		for _, field := range entry.Context {
			switch field.Type {
			case zapcore.StringType:
				fields[field.Key] = field.String
			case zapcore.Int64Type:
				fields[field.Key] = field.Integer
			}
		}
		return fields
	}

	tests := []struct {
		name     string
		log      func()
		message  string
		expected map[string]interface{}
	}{
		{
			name:    "LogCommandEvent",
			log:     func() { LogCommandEvent("finalize", zap.String("command", "turn on light")) },
			message: "Command capture",
			expected: map[string]interface{}{
				"component": "command_capture",
				"stage":     "finalize",
				"command":   "turn on light",
			},
		},
		{
			name:    "LogIntentResolution",
			log:     func() { LogIntentResolution("classifier", zap.String("intent", "TurnOnLight")) },
			message: "Intent resolved",
			expected: map[string]interface{}{
				"component": "intent",
				"source":    "classifier",
				"intent":    "TurnOnLight",
			},
		},
		{
			name:    "LogActuator",
			log:     func() { LogActuator("fan", "set_duty") },
			message: "Actuator",
			expected: map[string]interface{}{
				"component": "actuator",
				"device":    "fan",
				"action":    "set_duty",
			},
		},
		{
			name:    "LogRecording",
			log:     func() { LogRecording("enable", zap.String("filename", "recording_01-01-2025_10-00-00.txt")) },
			message: "Recording session",
			expected: map[string]interface{}{
				"component": "recording",
				"action":    "enable",
				"filename":  "recording_01-01-2025_10-00-00.txt",
			},
		},
		{
			name:    "LogNATSEvent",
			log:     func() { LogNATSEvent("loqa.assistant.commands", "publish") },
			message: "NATS event",
			expected: map[string]interface{}{
				"component": "messaging",
				"subject":   "loqa.assistant.commands",
				"action":    "publish",
			},
		},
		{
			name:    "LogDatabaseOperation",
			log:     func() { LogDatabaseOperation("INSERT", "command_events", zap.Int("affected_rows", 1)) },
			message: "Database operation",
			expected: map[string]interface{}{
				"component":     "database",
				"operation":     "INSERT",
				"table":         "command_events",
				"affected_rows": int64(1),
			},
		},
		{
			name:    "LogTTSOperation",
			log:     func() { LogTTSOperation("synthesis_start") },
			message: "TTS operation",
			expected: map[string]interface{}{
				"component": "tts",
				"operation": "synthesis_start",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.log()

			logs := recorded.All()
			if len(logs) == 0 {
				t.Fatal("Expected log entry but got none")
			}

			entry := logs[len(logs)-1]
			if entry.Message != tt.message {
				t.Errorf("Message = %q, want %q", entry.Message, tt.message)
			}

			fields := fieldsOf(entry)
			for key, want := range tt.expected {
				if fields[key] != want {
					t.Errorf("field %s = %v, want %v", key, fields[key], want)
				}
			}
		})
	}

	t.Run("LogError", func(t *testing.T) {
		LogError(errors.New("test error"), "Something went wrong", zap.String("context", "test"))

		logs := recorded.All()
		entry := logs[len(logs)-1]
		if entry.Level != zapcore.ErrorLevel {
			t.Errorf("Level = %v, want error", entry.Level)
		}

		hasError := false
		for _, field := range entry.Context {
			if field.Key == "error" {
				hasError = true
			}
		}
		if !hasError {
			t.Error("Missing error field")
		}
	})

	t.Run("LogWarn", func(t *testing.T) {
		LogWarn("Queue overflow", zap.Int("dropped", 3))

		logs := recorded.All()
		entry := logs[len(logs)-1]
		if entry.Level != zapcore.WarnLevel {
			t.Errorf("Level = %v, want warn", entry.Level)
		}
	})
}

func TestLoggingFunctions_NilLogger(t *testing.T) {
	Logger = nil
	Sugar = nil
	defer func() {
		Logger = zap.NewNop()
		Sugar = Logger.Sugar()
	}()

	// None of these may panic without a logger
	LogCommandEvent("wake")
	LogIntentResolution("fallback")
	LogActuator("light", "on")
	LogRecording("disable")
	LogNATSEvent("subject", "publish")
	LogDatabaseOperation("SELECT", "command_events")
	LogError(errors.New("boom"), "message")
	LogWarn("warning")
	LogTTSOperation("play")
	Sync()
}

func TestGetEnvOrDefault(t *testing.T) {
	const key = "LOQA_TEST_LOGGING_ENV"
	_ = os.Unsetenv(key)

	if got := getEnvOrDefault(key, "fallback"); got != "fallback" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "fallback")
	}

	_ = os.Setenv(key, "set")
	defer func() { _ = os.Unsetenv(key) }()

	if got := getEnvOrDefault(key, "fallback"); got != "set" {
		t.Errorf("getEnvOrDefault() = %q, want %q", got, "set")
	}
}
