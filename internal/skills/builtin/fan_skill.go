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
	"fmt"
	"math"
	"sync"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/devices"
	"github.com/loqalabs/loqa-assistant/internal/skills"
)

// Spoken confirmations for the fan
const (
	FanOffSpeech = "Fan turned off"
	FanMaxSpeech = "Fan already at max."
	FanMinSpeech = "Fan already at min."
)

// FanSettings bounds the fan speed. Speeds are duty percentages.
type FanSettings struct {
	Speed float64
	Min   float64
	Max   float64
	Step  float64
}

// FanSettingsFromConfig extracts the fan settings from the actuator config
func FanSettingsFromConfig(cfg config.ActuatorConfig) FanSettings {
	return FanSettings{
		Speed: cfg.FanSpeed,
		Min:   cfg.FanMin,
		Max:   cfg.FanMax,
		Step:  cfg.FanStep,
	}
}

// FanSkill drives the PWM fan output. The speed survives across commands.
type FanSkill struct {
	board    devices.Board
	settings FanSettings

	mu    sync.Mutex
	speed float64
}

// NewFanSkill creates a new fan skill instance
func NewFanSkill(board devices.Board, settings FanSettings) *FanSkill {
	return &FanSkill{
		board:    board,
		settings: settings,
		speed:    settings.Speed,
	}
}

// Name implements skills.Skill
func (s *FanSkill) Name() string { return "fan" }

// Actions implements skills.Skill
func (s *FanSkill) Actions() []string {
	return []string{
		skills.ActionTurnOnFan,
		skills.ActionTurnOffFan,
		skills.ActionIncreaseSpeed,
		skills.ActionDecreaseSpeed,
	}
}

// Speed returns the current fan speed
func (s *FanSkill) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// HandleAction processes a fan action
func (s *FanSkill) HandleAction(ctx context.Context, action string) (*skills.SkillResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case skills.ActionTurnOnFan:
		return s.drive(s.speed, fmt.Sprintf("Fan on at %.1f", s.speed), "turn on the fan")
	case skills.ActionTurnOffFan:
		return s.drive(0, FanOffSpeech, "turn off the fan")
	case skills.ActionIncreaseSpeed:
		if s.speed >= s.settings.Max {
			return bound(FanMaxSpeech), nil
		}
		next := s.clamp(s.speed + s.settings.Step)
		return s.drive(next, fmt.Sprintf("Increased fan to %.1f", next), "increase the fan speed")
	case skills.ActionDecreaseSpeed:
		if s.speed <= s.settings.Min {
			return bound(FanMinSpeech), nil
		}
		next := s.clamp(s.speed - s.settings.Step)
		return s.drive(next, fmt.Sprintf("Decreased fan to %.1f", next), "decrease the fan speed")
	}

	return &skills.SkillResponse{SpeechText: skills.UnknownCommand}, nil
}

// Teardown implements skills.Skill. The board release zeroes the output.
func (s *FanSkill) Teardown(ctx context.Context) error {
	return nil
}

// drive sets the duty for speed and commits speed on success. A zero speed
// turns the fan off without touching the remembered speed.
func (s *FanSkill) drive(speed float64, speech, failure string) (*skills.SkillResponse, error) {
	action := skills.SkillAction{Type: "pwm", Target: devices.DeviceFan, Value: speed}

	if err := s.board.SetFanDuty(speed / 100); err != nil {
		return &skills.SkillResponse{
			Success:    false,
			Message:    failure,
			SpeechText: "Sorry, I couldn't " + failure,
			Actions:    []skills.SkillAction{action},
		}, err
	}

	if speed > 0 {
		s.speed = speed
	}
	action.Success = true
	return &skills.SkillResponse{
		Success:    true,
		Message:    speech,
		SpeechText: speech,
		Actions:    []skills.SkillAction{action},
	}, nil
}

func (s *FanSkill) clamp(speed float64) float64 {
	speed = math.Round(speed*100) / 100
	return math.Max(s.settings.Min, math.Min(s.settings.Max, speed))
}

func bound(speech string) *skills.SkillResponse {
	return &skills.SkillResponse{
		Success:    true,
		Message:    speech,
		SpeechText: speech,
	}
}
