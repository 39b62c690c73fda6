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

// Package devices drives the assistant's outputs: a listening indicator,
// a light and a PWM fan.
package devices

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/events"
)

// Device names used in logs and bus subjects
const (
	DeviceIndicator = "indicator"
	DeviceLight     = "light"
	DeviceFan       = "fan"
)

// ErrReleased is returned when a board is used after Release
var ErrReleased = errors.New("board released")

// Board is the set of outputs the assistant drives. Implementations
// serialize access internally.
type Board interface {
	SetIndicator(on bool) error
	SetLight(on bool) error
	ToggleLight() error
	// SetFanDuty sets the fan PWM duty cycle in [0, 1]
	SetFanDuty(duty float64) error
	// Release zeroes every output and frees the hardware
	Release() error
}

// State is a snapshot of the outputs
type State struct {
	Indicator bool
	Light     bool
	FanDuty   float64
}

// DevicePublisher sends device commands over the message bus
type DevicePublisher interface {
	PublishDeviceCommand(event *events.DeviceCommandEvent) error
}

// New builds the board selected by cfg.Backend. The publisher is only used
// by the nats backend.
func New(cfg config.ActuatorConfig, publisher DevicePublisher) (Board, error) {
	switch strings.ToLower(cfg.Backend) {
	case "gpio":
		return NewGPIOBoard(cfg)
	case "nats":
		if publisher == nil {
			return nil, errors.New("nats actuator backend requires a NATS connection")
		}
		return NewNATSBoard(publisher), nil
	case "log", "":
		return NewMemoryBoard(), nil
	default:
		return nil, fmt.Errorf("unknown actuator backend: %q", cfg.Backend)
	}
}

func checkDuty(duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("fan duty %.3f outside [0, 1]", duty)
	}
	return nil
}
