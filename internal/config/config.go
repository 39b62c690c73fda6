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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Loqa assistant
type Config struct {
	Audio     AudioConfig
	STT       STTConfig
	Command   CommandConfig
	Intent    IntentConfig
	LLM       LLMConfig
	TTS       TTSConfig
	Actuators ActuatorConfig
	Recording RecordingConfig
	Storage   StorageConfig
	NATS      NATSConfig
	Monitor   MonitorConfig
	Logging   LoggingConfig
}

// AudioConfig describes the microphone stream. Values are fixed for the process lifetime.
type AudioConfig struct {
	SampleRate int
	BlockSize  int // frames per block
	Device     int // input device index, -1 for the default device
	QueueSize  int // blocks buffered between capture and the consumer loop
}

// STTConfig holds Speech-to-Text configuration
type STTConfig struct {
	Engine          string // "whisper" or "http"
	ModelPath       string // whisper model file
	URL             string // OpenAI-compatible STT service
	Language        string
	SpeechThreshold float64       // RMS above which a block counts as speech
	EndpointSilence time.Duration // trailing silence that closes an utterance
	MaxUtterance    time.Duration
	RequestTimeout  time.Duration
}

// CommandConfig holds wake word and capture settings
type CommandConfig struct {
	WakeWord       string
	SilenceTimeout time.Duration
}

// IntentConfig holds intent classifier settings
type IntentConfig struct {
	URL           string
	Timeout       time.Duration
	MinConfidence float64
}

// LLMConfig holds the fallback LLM settings. The fallback is disabled without an API key.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Style       string
	Proxy       string // optional SOCKS5 address
	Timeout     time.Duration
}

// TTSConfig holds Text-to-Speech service configuration
type TTSConfig struct {
	Enabled       bool
	URL           string
	Timeout       time.Duration
	MaxConcurrent int
}

// ActuatorConfig holds GPIO/device settings
type ActuatorConfig struct {
	Backend       string // "gpio", "nats" or "log"
	IndicatorPin  string
	LightPin      string
	FanPin        string
	FanFrequency  int // Hz
	FanSpeed      float64
	FanMin        float64
	FanMax        float64
	FanStep       float64
	BlinkInterval time.Duration
}

// RecordingConfig holds recording session settings
type RecordingConfig struct {
	Dir string
}

// StorageConfig holds command history settings
type StorageConfig struct {
	Enabled bool
	DBPath  string
}

// NATSConfig holds NATS messaging configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// MonitorConfig holds the read-only monitoring surface configuration
type MonitorConfig struct {
	Enabled      bool
	Host         string
	Port         int
	GRPCPort     int // 0 disables the gRPC health service
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Audio: AudioConfig{
			SampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 16000),
			BlockSize:  getEnvInt("AUDIO_BLOCK_SIZE", 8000),
			Device:     getEnvInt("AUDIO_DEVICE", -1),
			QueueSize:  getEnvInt("AUDIO_QUEUE_SIZE", 64),
		},
		STT: STTConfig{
			Engine:          strings.ToLower(getEnvString("STT_ENGINE", "http")),
			ModelPath:       getEnvString("WHISPER_MODEL_PATH", "./models/ggml-base.en.bin"),
			URL:             getEnvString("STT_URL", "http://localhost:8000"),
			Language:        getEnvString("STT_LANGUAGE", "en"),
			SpeechThreshold: getEnvFloat64("STT_SPEECH_THRESHOLD", 0.015),
			EndpointSilence: getEnvDuration("STT_ENDPOINT_SILENCE", 600*time.Millisecond),
			MaxUtterance:    getEnvDuration("STT_MAX_UTTERANCE", 15*time.Second),
			RequestTimeout:  getEnvDuration("STT_TIMEOUT", 30*time.Second),
		},
		Command: CommandConfig{
			WakeWord:       strings.ToLower(strings.TrimSpace(getEnvString("WAKE_WORD", "assistant"))),
			SilenceTimeout: getEnvDuration("SILENCE_TIMEOUT", 2*time.Second),
		},
		Intent: IntentConfig{
			URL:           getEnvString("INTENT_URL", "http://localhost:12101/api/text-to-intent"),
			Timeout:       getEnvDuration("INTENT_TIMEOUT", 5*time.Second),
			MinConfidence: getEnvFloat64("INTENT_MIN_CONFIDENCE", 0.80),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:     getEnvString("LLM_BASE_URL", ""),
			Model:       getEnvString("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat64("LLM_TEMPERATURE", 0.5),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 256),
			Style:       getEnvString("LLM_STYLE", "respond short with human like sentences with simple grammar and syntax"),
			Proxy:       getEnvString("LLM_PROXY", ""),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 15*time.Second),
		},
		TTS: TTSConfig{
			Enabled:       getEnvBool("TTS_ENABLED", true),
			URL:           getEnvString("TTS_URL", "http://localhost:12101/api/text-to-speech"),
			Timeout:       getEnvDuration("TTS_TIMEOUT", 10*time.Second),
			MaxConcurrent: getEnvInt("TTS_MAX_CONCURRENT", 1),
		},
		Actuators: ActuatorConfig{
			Backend:       strings.ToLower(getEnvString("ACTUATOR_BACKEND", "log")),
			IndicatorPin:  getEnvString("INDICATOR_PIN", "GPIO17"),
			LightPin:      getEnvString("LIGHT_PIN", "GPIO26"),
			FanPin:        getEnvString("FAN_PIN", "GPIO18"),
			FanFrequency:  getEnvInt("FAN_PWM_FREQUENCY", 50),
			FanSpeed:      getEnvFloat64("FAN_SPEED", 7.5),
			FanMin:        getEnvFloat64("FAN_SPEED_MIN", 5.0),
			FanMax:        getEnvFloat64("FAN_SPEED_MAX", 10.0),
			FanStep:       getEnvFloat64("FAN_SPEED_STEP", 0.5),
			BlinkInterval: getEnvDuration("BLINK_INTERVAL", 100*time.Millisecond),
		},
		Recording: RecordingConfig{
			Dir: getEnvString("RECORDINGS_DIR", "."),
		},
		Storage: StorageConfig{
			Enabled: getEnvBool("HISTORY_ENABLED", true),
			DBPath:  getEnvString("DB_PATH", "./data/loqa-assistant.db"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", ""),
			SubjectPrefix: getEnvString("NATS_SUBJECT_PREFIX", "loqa.assistant"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Monitor: MonitorConfig{
			Enabled:      getEnvBool("MONITOR_ENABLED", true),
			Host:         getEnvString("MONITOR_HOST", "0.0.0.0"),
			Port:         getEnvInt("MONITOR_PORT", 5000),
			GRPCPort:     getEnvInt("MONITOR_GRPC_PORT", 50051),
			ReadTimeout:  getEnvDuration("MONITOR_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("MONITOR_WRITE_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LLMEnabled reports whether the fallback LLM tier is configured
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Audio.SampleRate)
	}

	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("invalid block size: %d", c.Audio.BlockSize)
	}

	if c.Audio.QueueSize <= 0 {
		return fmt.Errorf("audio queue size must be positive: %d", c.Audio.QueueSize)
	}

	switch c.STT.Engine {
	case "whisper":
		if c.STT.ModelPath == "" {
			return fmt.Errorf("whisper model path must be provided")
		}
	case "http":
		if c.STT.URL == "" {
			return fmt.Errorf("STT URL must be provided")
		}
	default:
		return fmt.Errorf("unknown STT engine: %q", c.STT.Engine)
	}

	if c.Command.WakeWord == "" || strings.ContainsAny(c.Command.WakeWord, " \t") {
		return fmt.Errorf("wake word must be a single token: %q", c.Command.WakeWord)
	}

	if c.Command.SilenceTimeout <= 0 {
		return fmt.Errorf("silence timeout must be positive: %s", c.Command.SilenceTimeout)
	}

	if c.Intent.URL == "" {
		return fmt.Errorf("intent URL must be provided")
	}

	if c.Intent.MinConfidence < 0 || c.Intent.MinConfidence > 1 {
		return fmt.Errorf("intent confidence threshold must be within [0,1]: %f", c.Intent.MinConfidence)
	}

	if c.TTS.Enabled && c.TTS.URL == "" {
		return fmt.Errorf("TTS URL must be provided")
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	switch c.Actuators.Backend {
	case "gpio", "log":
	case "nats":
		if c.NATS.URL == "" {
			return fmt.Errorf("nats actuator backend requires NATS_URL")
		}
	default:
		return fmt.Errorf("unknown actuator backend: %q", c.Actuators.Backend)
	}

	a := c.Actuators
	if a.FanMin >= a.FanMax {
		return fmt.Errorf("fan speed bounds are inverted: [%.1f, %.1f]", a.FanMin, a.FanMax)
	}
	if a.FanSpeed < a.FanMin || a.FanSpeed > a.FanMax {
		return fmt.Errorf("fan speed %.1f outside [%.1f, %.1f]", a.FanSpeed, a.FanMin, a.FanMax)
	}
	if a.FanStep <= 0 {
		return fmt.Errorf("fan speed step must be positive: %f", a.FanStep)
	}

	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		return fmt.Errorf("invalid monitor port: %d", c.Monitor.Port)
	}

	if c.Monitor.GRPCPort < 0 || c.Monitor.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Monitor.GRPCPort)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
