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

// Package assistant runs the consumer loop that turns audio blocks into
// spoken replies and actuator changes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/audio"
	"github.com/loqalabs/loqa-assistant/internal/command"
	"github.com/loqalabs/loqa-assistant/internal/events"
	"github.com/loqalabs/loqa-assistant/internal/intent"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/recording"
	"github.com/loqalabs/loqa-assistant/internal/security"
	"github.com/loqalabs/loqa-assistant/internal/skills"
	"github.com/loqalabs/loqa-assistant/internal/stt"
	"github.com/loqalabs/loqa-assistant/internal/tts"
	"go.uber.org/zap"
)

// Intent names recorded for recording control phrases
const (
	IntentEnableRecording  = "EnableRecording"
	IntentDisableRecording = "DisableRecording"
)

// BlockQueue is the bounded queue filled by the capture callback
type BlockQueue interface {
	Blocks() <-chan audio.Block
	Drain() int
}

// Resolver maps a finalized command to an action or a reply
type Resolver interface {
	Resolve(ctx context.Context, command string) intent.Resolution
}

// Dispatcher performs an action and returns what to say about it
type Dispatcher interface {
	Dispatch(ctx context.Context, action string) *skills.SkillResponse
}

// Indicator shows whether a command is being captured
type Indicator interface {
	SetIndicator(on bool) error
}

// HistoryRecorder persists command events
type HistoryRecorder interface {
	Insert(event *events.CommandEvent) error
}

// EventPublisher announces command events on the message bus
type EventPublisher interface {
	PublishCommandEvent(event *events.CommandEvent) error
}

// Dependencies wires the loop. History and Publisher are optional.
type Dependencies struct {
	Queue      BlockQueue
	Source     stt.Source
	Buffer     *command.Buffer
	Session    *recording.Session
	Resolver   Resolver
	Dispatcher Dispatcher
	Speaker    tts.Speaker
	Indicator  Indicator
	History    HistoryRecorder
	Publisher  EventPublisher
}

// Assistant owns the command buffer and recording session. All of its
// state is touched only from Run.
type Assistant struct {
	queue      BlockQueue
	source     stt.Source
	buffer     *command.Buffer
	session    *recording.Session
	resolver   Resolver
	dispatcher Dispatcher
	speaker    tts.Speaker
	indicator  Indicator
	history    HistoryRecorder
	publisher  EventPublisher
}

// New validates the dependencies and creates the loop
func New(deps Dependencies) (*Assistant, error) {
	switch {
	case deps.Queue == nil:
		return nil, errors.New("assistant: queue is required")
	case deps.Source == nil:
		return nil, errors.New("assistant: transcript source is required")
	case deps.Buffer == nil:
		return nil, errors.New("assistant: command buffer is required")
	case deps.Session == nil:
		return nil, errors.New("assistant: recording session is required")
	case deps.Resolver == nil:
		return nil, errors.New("assistant: resolver is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("assistant: dispatcher is required")
	case deps.Speaker == nil:
		return nil, errors.New("assistant: speaker is required")
	case deps.Indicator == nil:
		return nil, errors.New("assistant: indicator is required")
	}

	return &Assistant{
		queue:      deps.Queue,
		source:     deps.Source,
		buffer:     deps.Buffer,
		session:    deps.Session,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		speaker:    deps.Speaker,
		indicator:  deps.Indicator,
		history:    deps.History,
		publisher:  deps.Publisher,
	}, nil
}

// Run consumes audio blocks until ctx is cancelled or the queue is closed.
// The silence timer is armed only while a command is being captured.
func (a *Assistant) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	logging.LogCommandEvent("listening")
	defer a.shutdown()

	for {
		var timeout <-chan time.Time
		if left, capturing := a.buffer.Remaining(); capturing {
			timer.Reset(left)
			timeout = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return nil

		case block, ok := <-a.queue.Blocks():
			if !ok {
				return nil
			}
			if text, done := a.source.Feed(ctx, block); done {
				a.handleTranscript(ctx, text)
			}
			a.tick(ctx)

		case <-timeout:
			a.tick(ctx)
		}
	}
}

func (a *Assistant) handleTranscript(ctx context.Context, text string) {
	logging.LogCommandEvent("transcript", zap.String("text", security.SanitizeLogInput(text)))

	switch recording.Match(text) {
	case recording.Enable:
		a.toggleRecording(ctx, text, IntentEnableRecording, a.session.Enable)
		return
	case recording.Disable:
		a.toggleRecording(ctx, text, IntentDisableRecording, a.session.Disable)
		return
	}

	a.session.Append(text)

	event := a.buffer.Observe(text)
	switch event.Kind {
	case command.WakeDetected:
		logging.LogCommandEvent("wake_detected")
		a.setIndicator(true)
		a.source.Reset()
	case command.Appended:
		logging.LogCommandEvent("appended", zap.Int("words", len(a.buffer.Words())))
	}
}

func (a *Assistant) tick(ctx context.Context) {
	event := a.buffer.Tick()
	switch event.Kind {
	case command.Finalized:
		a.finalize(ctx, event.Command)
	case command.Dropped:
		logging.LogCommandEvent("dropped")
		a.setIndicator(false)
		a.settle()
	}
}

func (a *Assistant) finalize(ctx context.Context, cmd string) {
	a.setIndicator(false)
	logging.LogCommandEvent("finalized", zap.String("command", security.SanitizeLogInput(cmd)))

	// A control phrase spoken after the wake word never reaches the resolver
	switch recording.Match(cmd) {
	case recording.Enable:
		a.toggleRecording(ctx, cmd, IntentEnableRecording, a.session.Enable)
		return
	case recording.Disable:
		a.toggleRecording(ctx, cmd, IntentDisableRecording, a.session.Disable)
		return
	}

	event := events.NewCommandEvent(cmd)
	res := a.resolver.Resolve(ctx, cmd)
	event.SetResolution(string(res.Source), res.Intent, res.Confidence)

	if res.Action != "" {
		resp := a.dispatcher.Dispatch(ctx, res.Action)
		a.speak(ctx, resp.SpeechText)
		event.SetResponse(res.Action, resp.SpeechText)
		if !resp.Success {
			event.SetError(fmt.Errorf("action %s failed: %s", res.Action, resp.Error))
		}
	} else {
		a.speak(ctx, res.Response)
		event.SetResponse("", res.Response)
	}

	a.record(event)
	a.settle()
}

func (a *Assistant) toggleRecording(ctx context.Context, text, name string, toggle func() recording.Result) {
	if a.buffer.Abort() {
		logging.LogCommandEvent("aborted", zap.String("reason", "recording control phrase"))
	}
	a.setIndicator(false)

	event := events.NewCommandEvent(text)
	event.SetResolution(string(intent.SourceRecording), name, 1)

	result := toggle()
	a.speak(ctx, result.Message)
	event.SetResponse("", result.Message)
	event.SetError(result.Err)

	a.record(event)
	a.settle()
}

// settle discards audio captured while the assistant was busy speaking
func (a *Assistant) settle() {
	a.source.Reset()
	if n := a.queue.Drain(); n > 0 {
		logging.Logger.Debug("Drained queued audio", zap.Int("blocks", n))
	}
}

func (a *Assistant) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := a.speaker.Speak(ctx, text); err != nil {
		logging.LogError(err, "Failed to speak response", zap.String("text", security.SanitizeLogInput(text)))
	}
}

func (a *Assistant) setIndicator(on bool) {
	if err := a.indicator.SetIndicator(on); err != nil {
		logging.LogError(err, "Failed to drive indicator", zap.Bool("on", on))
	}
}

func (a *Assistant) record(event *events.CommandEvent) {
	if a.history != nil {
		if err := a.history.Insert(event); err != nil {
			logging.LogError(err, "Failed to store command event", zap.String("uuid", event.UUID))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishCommandEvent(event); err != nil {
			logging.LogWarn("Failed to publish command event",
				zap.String("uuid", event.UUID),
				zap.Error(err))
		}
	}
}

// shutdown leaves the loop idle and flushes an active recording
func (a *Assistant) shutdown() {
	a.buffer.Abort()
	a.setIndicator(false)

	if a.session.Active() {
		result := a.session.Disable()
		logging.LogRecording("flushed_on_shutdown",
			zap.String("path", result.Path),
			zap.Error(result.Err))
	}

	logging.LogCommandEvent("stopped")
}
