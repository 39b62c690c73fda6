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

package devices

import (
	"sync"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// MemoryBoard keeps output state in memory and logs every change
type MemoryBoard struct {
	mu       sync.Mutex
	state    State
	toggles  int
	released bool
}

// NewMemoryBoard creates a board with every output off
func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{}
}

// SetIndicator implements Board
func (b *MemoryBoard) SetIndicator(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	b.state.Indicator = on
	logging.LogActuator(DeviceIndicator, onOff(on))
	return nil
}

// SetLight implements Board
func (b *MemoryBoard) SetLight(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	b.state.Light = on
	logging.LogActuator(DeviceLight, onOff(on))
	return nil
}

// ToggleLight implements Board. Toggles are logged at debug level since
// blinking produces ten per second.
func (b *MemoryBoard) ToggleLight() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	b.state.Light = !b.state.Light
	b.toggles++
	logging.Logger.Debug("Light toggled", zap.String("component", "actuator"), zap.Bool("on", b.state.Light))
	return nil
}

// SetFanDuty implements Board
func (b *MemoryBoard) SetFanDuty(duty float64) error {
	if err := checkDuty(duty); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	b.state.FanDuty = duty
	logging.LogActuator(DeviceFan, "duty", zap.Float64("duty", duty))
	return nil
}

// Release implements Board
func (b *MemoryBoard) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.state = State{}
	b.released = true
	logging.LogActuator("board", "release")
	return nil
}

// State returns a snapshot of the outputs
func (b *MemoryBoard) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Toggles returns how many times the light was toggled
func (b *MemoryBoard) Toggles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.toggles
}

// Released reports whether Release was called
func (b *MemoryBoard) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
