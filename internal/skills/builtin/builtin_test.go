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
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/devices"
	"github.com/loqalabs/loqa-assistant/internal/skills"
)

// failingBoard rejects every mutation
type failingBoard struct {
	devices.Board
	err error
}

func (b *failingBoard) SetLight(on bool) error        { return b.err }
func (b *failingBoard) ToggleLight() error            { return b.err }
func (b *failingBoard) SetFanDuty(duty float64) error { return b.err }
func (b *failingBoard) SetIndicator(on bool) error    { return b.err }
func (b *failingBoard) Release() error                { return nil }

func testFanSettings() FanSettings {
	return FanSettings{Speed: 7.5, Min: 5.0, Max: 10.0, Step: 0.5}
}

func TestLightsSkillSwitch(t *testing.T) {
	board := devices.NewMemoryBoard()
	skill := NewLightsSkill(board, time.Millisecond)
	ctx := context.Background()

	resp, err := skill.HandleAction(ctx, skills.ActionTurnOnLight)
	if err != nil {
		t.Fatalf("TurnOnLight error = %v", err)
	}
	if resp.SpeechText != LightOnSpeech {
		t.Errorf("SpeechText = %q, want %q", resp.SpeechText, LightOnSpeech)
	}
	if !board.State().Light {
		t.Error("Expected light to be on")
	}

	resp, err = skill.HandleAction(ctx, skills.ActionTurnOffLight)
	if err != nil {
		t.Fatalf("TurnOffLight error = %v", err)
	}
	if resp.SpeechText != LightOffSpeech {
		t.Errorf("SpeechText = %q, want %q", resp.SpeechText, LightOffSpeech)
	}
	if board.State().Light {
		t.Error("Expected light to be off")
	}
}

func TestLightsSkillBlinkStopsBeforeDriving(t *testing.T) {
	board := devices.NewMemoryBoard()
	skill := NewLightsSkill(board, 2*time.Millisecond)
	ctx := context.Background()

	resp, err := skill.HandleAction(ctx, skills.ActionBlinkLight)
	if err != nil {
		t.Fatalf("BlinkLight error = %v", err)
	}
	if resp.SpeechText != LightBlinkingSpeech {
		t.Errorf("SpeechText = %q, want %q", resp.SpeechText, LightBlinkingSpeech)
	}
	if !skill.Blinking() {
		t.Fatal("Expected blink task to be running")
	}

	// A second blink request keeps the single running task
	if _, err := skill.HandleAction(ctx, skills.ActionBlinkLight); err != nil {
		t.Fatalf("BlinkLight error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for board.Toggles() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if board.Toggles() < 3 {
		t.Fatalf("Toggles = %d, want at least 3", board.Toggles())
	}

	if _, err := skill.HandleAction(ctx, skills.ActionTurnOnLight); err != nil {
		t.Fatalf("TurnOnLight error = %v", err)
	}
	if skill.Blinking() {
		t.Error("Expected blink task to be stopped")
	}

	toggles := board.Toggles()
	time.Sleep(10 * time.Millisecond)
	if board.Toggles() != toggles {
		t.Errorf("Toggles changed after stop: %d -> %d", toggles, board.Toggles())
	}
	if !board.State().Light {
		t.Error("Expected light to be on after blink stopped")
	}
}

// flakyToggleBoard fails ToggleLight while broken is set
type flakyToggleBoard struct {
	*devices.MemoryBoard
	broken atomic.Bool
}

func (b *flakyToggleBoard) ToggleLight() error {
	if b.broken.Load() {
		return errors.New("pin busy")
	}
	return b.MemoryBoard.ToggleLight()
}

func TestLightsSkillBlinkRestartsAfterBoardError(t *testing.T) {
	board := &flakyToggleBoard{MemoryBoard: devices.NewMemoryBoard()}
	board.broken.Store(true)
	skill := NewLightsSkill(board, time.Millisecond)
	ctx := context.Background()
	defer skill.Teardown(ctx)

	if _, err := skill.HandleAction(ctx, skills.ActionBlinkLight); err != nil {
		t.Fatalf("BlinkLight error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for skill.Blinking() {
		if time.Now().After(deadline) {
			t.Fatal("Expected blink task to exit after toggle failure")
		}
		time.Sleep(time.Millisecond)
	}

	board.broken.Store(false)
	if _, err := skill.HandleAction(ctx, skills.ActionBlinkLight); err != nil {
		t.Fatalf("BlinkLight error = %v", err)
	}
	if !skill.Blinking() {
		t.Fatal("Expected a new blink task")
	}

	deadline = time.Now().Add(2 * time.Second)
	for board.Toggles() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("toggles = %d, want at least 2", board.Toggles())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLightsSkillTeardownStopsBlink(t *testing.T) {
	board := devices.NewMemoryBoard()
	skill := NewLightsSkill(board, time.Millisecond)

	if _, err := skill.HandleAction(context.Background(), skills.ActionBlinkLight); err != nil {
		t.Fatalf("BlinkLight error = %v", err)
	}
	if err := skill.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown error = %v", err)
	}
	if skill.Blinking() {
		t.Error("Expected blink task to be stopped")
	}
}

func TestLightsSkillFailure(t *testing.T) {
	boardErr := errors.New("pin busy")
	skill := NewLightsSkill(&failingBoard{err: boardErr}, time.Millisecond)

	resp, err := skill.HandleAction(context.Background(), skills.ActionTurnOnLight)
	if !errors.Is(err, boardErr) {
		t.Errorf("error = %v, want %v", err, boardErr)
	}
	if resp.Success {
		t.Error("Expected failure response")
	}
	if resp.SpeechText != "Sorry, I couldn't turn on LED two" {
		t.Errorf("SpeechText = %q", resp.SpeechText)
	}
}

func TestFanSkillActions(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		action    string
		wantSpeed float64
		wantDuty  float64
		wantText  string
	}{
		{"turn on at default", 7.5, skills.ActionTurnOnFan, 7.5, 0.075, "Fan on at 7.5"},
		{"turn off keeps speed", 7.5, skills.ActionTurnOffFan, 7.5, 0, FanOffSpeech},
		{"increase", 7.5, skills.ActionIncreaseSpeed, 8.0, 0.08, "Increased fan to 8.0"},
		{"decrease", 7.5, skills.ActionDecreaseSpeed, 7.0, 0.07, "Decreased fan to 7.0"},
		{"increase at max", 10.0, skills.ActionIncreaseSpeed, 10.0, 0, FanMaxSpeech},
		{"decrease at min", 5.0, skills.ActionDecreaseSpeed, 5.0, 0, FanMinSpeech},
		{"increase clamps", 9.8, skills.ActionIncreaseSpeed, 10.0, 0.10, "Increased fan to 10.0"},
		{"decrease clamps", 5.2, skills.ActionDecreaseSpeed, 5.0, 0.05, "Decreased fan to 5.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := devices.NewMemoryBoard()
			settings := testFanSettings()
			settings.Speed = tt.start
			skill := NewFanSkill(board, settings)

			resp, err := skill.HandleAction(context.Background(), tt.action)
			if err != nil {
				t.Fatalf("HandleAction error = %v", err)
			}
			if resp.SpeechText != tt.wantText {
				t.Errorf("SpeechText = %q, want %q", resp.SpeechText, tt.wantText)
			}
			if skill.Speed() != tt.wantSpeed {
				t.Errorf("Speed = %v, want %v", skill.Speed(), tt.wantSpeed)
			}
			if got := board.State().FanDuty; math.Abs(got-tt.wantDuty) > 1e-9 {
				t.Errorf("FanDuty = %v, want %v", got, tt.wantDuty)
			}
		})
	}
}

func TestFanSkillStepsStayInBounds(t *testing.T) {
	board := devices.NewMemoryBoard()
	skill := NewFanSkill(board, testFanSettings())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := skill.HandleAction(ctx, skills.ActionIncreaseSpeed); err != nil {
			t.Fatalf("IncreaseSpeed error = %v", err)
		}
	}
	if skill.Speed() != 10.0 {
		t.Errorf("Speed = %v, want 10.0", skill.Speed())
	}

	for i := 0; i < 20; i++ {
		if _, err := skill.HandleAction(ctx, skills.ActionDecreaseSpeed); err != nil {
			t.Fatalf("DecreaseSpeed error = %v", err)
		}
	}
	if skill.Speed() != 5.0 {
		t.Errorf("Speed = %v, want 5.0", skill.Speed())
	}
}

func TestFanSkillFailureKeepsSpeed(t *testing.T) {
	boardErr := errors.New("pwm unavailable")
	skill := NewFanSkill(&failingBoard{err: boardErr}, testFanSettings())

	resp, err := skill.HandleAction(context.Background(), skills.ActionIncreaseSpeed)
	if !errors.Is(err, boardErr) {
		t.Errorf("error = %v, want %v", err, boardErr)
	}
	if resp.Success {
		t.Error("Expected failure response")
	}
	if resp.SpeechText != "Sorry, I couldn't increase the fan speed" {
		t.Errorf("SpeechText = %q", resp.SpeechText)
	}
	if skill.Speed() != 7.5 {
		t.Errorf("Speed = %v, want 7.5", skill.Speed())
	}
}
