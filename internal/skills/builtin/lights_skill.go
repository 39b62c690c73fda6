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

package builtin

import (
	"context"
	"sync"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/devices"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/skills"
	"go.uber.org/zap"
)

// Spoken confirmations for the light
const (
	LightOnSpeech       = "LED two turned on"
	LightOffSpeech      = "LED two turned off"
	LightBlinkingSpeech = "LED two blinking"
)

// DefaultBlinkInterval is the toggle period used when none is configured
const DefaultBlinkInterval = 100 * time.Millisecond

// LightsSkill drives the light output, including the blink task
type LightsSkill struct {
	board    devices.Board
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLightsSkill creates a new lights skill instance
func NewLightsSkill(board devices.Board, interval time.Duration) *LightsSkill {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	return &LightsSkill{
		board:    board,
		interval: interval,
	}
}

// Name implements skills.Skill
func (s *LightsSkill) Name() string { return "lights" }

// Actions implements skills.Skill
func (s *LightsSkill) Actions() []string {
	return []string{skills.ActionTurnOnLight, skills.ActionTurnOffLight, skills.ActionBlinkLight}
}

// HandleAction processes a lighting action
func (s *LightsSkill) HandleAction(ctx context.Context, action string) (*skills.SkillResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapBlink()

	switch action {
	case skills.ActionTurnOnLight:
		s.stopBlink()
		return s.drive(true, LightOnSpeech, "turn on LED two")
	case skills.ActionTurnOffLight:
		s.stopBlink()
		return s.drive(false, LightOffSpeech, "turn off LED two")
	case skills.ActionBlinkLight:
		if s.stop == nil {
			s.stop = make(chan struct{})
			s.done = make(chan struct{})
			go s.blink(s.stop, s.done)
		}
		return &skills.SkillResponse{
			Success:    true,
			Message:    "blinking",
			SpeechText: LightBlinkingSpeech,
			Actions: []skills.SkillAction{
				{Type: "blink", Target: devices.DeviceLight, Success: true},
			},
		}, nil
	}

	return &skills.SkillResponse{SpeechText: skills.UnknownCommand}, nil
}

// Blinking reports whether the blink task is running
func (s *LightsSkill) Blinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reapBlink()
	return s.stop != nil
}

// Teardown stops the blink task
func (s *LightsSkill) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopBlink()
	return nil
}

func (s *LightsSkill) drive(on bool, speech, failure string) (*skills.SkillResponse, error) {
	action := skills.SkillAction{Type: "switch", Target: devices.DeviceLight}
	if on {
		action.Value = 1
	}

	if err := s.board.SetLight(on); err != nil {
		return &skills.SkillResponse{
			Success:    false,
			Message:    failure,
			SpeechText: "Sorry, I couldn't " + failure,
			Actions:    []skills.SkillAction{action},
		}, err
	}

	action.Success = true
	return &skills.SkillResponse{
		Success:    true,
		Message:    speech,
		SpeechText: speech,
		Actions:    []skills.SkillAction{action},
	}, nil
}

// stopBlink signals the blink task and waits for it. Caller holds s.mu.
func (s *LightsSkill) stopBlink() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// reapBlink forgets a blink task that exited on its own after a board error.
// Caller holds s.mu.
func (s *LightsSkill) reapBlink() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
		s.stop, s.done = nil, nil
	default:
	}
}

func (s *LightsSkill) blink(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.board.ToggleLight(); err != nil {
				logging.LogError(err, "Blink task stopped", zap.String("device", devices.DeviceLight))
				return
			}
		}
	}
}
