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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/assistant"
	"github.com/loqalabs/loqa-assistant/internal/audio"
	"github.com/loqalabs/loqa-assistant/internal/command"
	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/devices"
	"github.com/loqalabs/loqa-assistant/internal/intent"
	"github.com/loqalabs/loqa-assistant/internal/llm"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/messaging"
	"github.com/loqalabs/loqa-assistant/internal/microphone"
	"github.com/loqalabs/loqa-assistant/internal/recording"
	"github.com/loqalabs/loqa-assistant/internal/server"
	"github.com/loqalabs/loqa-assistant/internal/skills"
	"github.com/loqalabs/loqa-assistant/internal/skills/builtin"
	"github.com/loqalabs/loqa-assistant/internal/storage"
	"github.com/loqalabs/loqa-assistant/internal/stt"
	"github.com/loqalabs/loqa-assistant/internal/tiers"
	"github.com/loqalabs/loqa-assistant/internal/tts"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log-level", "l", "", "Log level (overrides LOG_LEVEL)")
	logFormat := cli.String("log-format", "", "Log format: console or json (overrides LOG_FORMAT)")
	cli.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.LogError(err, "Assistant stopped with error")
		logging.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Sugar.Infow("Loqa assistant starting",
		"wake_word", cfg.Command.WakeWord,
		"stt_engine", cfg.STT.Engine,
		"actuators", cfg.Actuators.Backend,
		"llm_enabled", cfg.LLMEnabled(),
		"history_enabled", cfg.Storage.Enabled,
	)

	// Message bus
	var natsService *messaging.NATSService
	if cfg.NATS.URL != "" {
		natsService = messaging.NewNATSService(cfg.NATS)
		if err := natsService.Connect(); err != nil {
			if cfg.Actuators.Backend == "nats" {
				return fmt.Errorf("nats actuator backend: %w", err)
			}
			logging.LogWarn("NATS unavailable, events will not be published", zap.Error(err))
		}
		defer natsService.Close()
	}

	// Actuators
	var publisher devices.DevicePublisher
	if natsService != nil {
		publisher = natsService
	}
	board, err := devices.New(cfg.Actuators, publisher)
	if err != nil {
		return fmt.Errorf("failed to create actuator board: %w", err)
	}
	defer func() {
		if err := board.Release(); err != nil {
			logging.LogError(err, "Failed to release actuators")
		}
	}()

	manager := skills.NewManager()
	if err := manager.Register(builtin.NewLightsSkill(board, cfg.Actuators.BlinkInterval)); err != nil {
		return err
	}
	if err := manager.Register(builtin.NewFanSkill(board, builtin.FanSettingsFromConfig(cfg.Actuators))); err != nil {
		return err
	}
	// Runs before the board release so the blink task never outlives the pins
	defer manager.Shutdown(context.Background())

	// Command history
	var history *storage.CommandHistoryStore
	if cfg.Storage.Enabled {
		db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.DBPath})
		if err != nil {
			return fmt.Errorf("failed to open command history: %w", err)
		}
		defer func() {
			if err := db.Checkpoint(); err != nil {
				logging.LogWarn("Database checkpoint failed", zap.Error(err))
			}
			db.Close()
		}()
		history = storage.NewCommandHistoryStore(db)
	}

	// Intent resolution
	var responder intent.Responder
	if cfg.LLMEnabled() {
		chat, err := llm.NewChatResponder(cfg.LLM)
		if err != nil {
			return fmt.Errorf("failed to create LLM responder: %w", err)
		}
		responder = chat
	} else {
		logging.LogWarn("LLM fallback disabled, no API key configured")
	}
	resolver := intent.NewResolver(
		intent.NewHTTPClassifier(cfg.Intent.URL, cfg.Intent.Timeout),
		responder,
		cfg.Intent.MinConfidence,
	)

	// Speech output
	var speaker tts.Speaker = tts.LogSpeaker{}
	if cfg.TTS.Enabled {
		synth, err := tts.NewHTTPSynthesizer(cfg.TTS)
		if err != nil {
			return fmt.Errorf("failed to create TTS client: %w", err)
		}
		speaker = tts.NewVoice(synth, tts.NewSpeakerPlayer())
	}

	// Speech input
	transcriber, err := newTranscriber(ctx, cfg.STT)
	if err != nil {
		return err
	}
	defer transcriber.Close()

	queue := audio.NewQueue(cfg.Audio.QueueSize)
	mic, err := microphone.New(cfg.Audio, queue)
	if err != nil {
		return err
	}
	defer mic.Close()

	loop, err := assistant.New(assistant.Dependencies{
		Queue:      queue,
		Source:     stt.NewEnergySource(cfg.STT, cfg.Audio.SampleRate, transcriber),
		Buffer:     command.NewBuffer(cfg.Command.WakeWord, cfg.Command.SilenceTimeout, nil),
		Session:    recording.NewSession(cfg.Recording.Dir, nil),
		Resolver:   resolver,
		Dispatcher: manager,
		Speaker:    speaker,
		Indicator:  board,
		History:    optionalHistory(history),
		Publisher:  optionalPublisher(natsService),
	})
	if err != nil {
		return err
	}

	// Dependency probes
	var natsConnected func() bool
	if natsService != nil {
		natsConnected = natsService.IsConnected
	}
	detector := tiers.NewDetector(tiers.ChecksFromConfig(cfg, natsConnected), 30*time.Second, 5*time.Second)
	go detector.Start(ctx)

	// Monitoring surface
	var monitor *server.Server
	if cfg.Monitor.Enabled {
		deps := server.Dependencies{
			Recordings: recording.NewArchive(cfg.Recording.Dir),
			Skills:     manager,
			Logs:       logging.Live,
			Tiers:      detector,
		}
		if history != nil {
			deps.History = history
		}
		monitor = server.New(cfg.Monitor, deps)
		go func() {
			if err := monitor.Start(); err != nil {
				logging.LogError(err, "Monitoring server failed")
			}
		}()
		defer monitor.Stop()
	}

	if err := mic.Start(); err != nil {
		return err
	}
	defer mic.Stop()

	if monitor != nil {
		monitor.SetServing(true)
		defer monitor.SetServing(false)
	}

	logging.Sugar.Infow("Listening for wake word", "wake_word", cfg.Command.WakeWord)
	return loop.Run(ctx)
}

func newTranscriber(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, error) {
	switch cfg.Engine {
	case "whisper":
		t, err := stt.NewWhisperTranscriber(cfg.ModelPath, cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to load whisper model: %w", err)
		}
		return t, nil
	default:
		t, err := stt.NewHTTPTranscriber(ctx, cfg.URL, cfg.Language, cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to STT service: %w", err)
		}
		return t, nil
	}
}

// optionalHistory keeps a nil store from becoming a non-nil interface
func optionalHistory(store *storage.CommandHistoryStore) assistant.HistoryRecorder {
	if store == nil {
		return nil
	}
	return store
}

func optionalPublisher(svc *messaging.NATSService) assistant.EventPublisher {
	if svc == nil {
		return nil
	}
	return svc
}
