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

	"github.com/loqalabs/loqa-assistant/internal/events"
)

// NATSBoard forwards every output change as a device command on the
// message bus, for boards driven by a remote controller.
type NATSBoard struct {
	mu        sync.Mutex
	publisher DevicePublisher
	state     State
	released  bool
}

// NewNATSBoard creates a board publishing through publisher
func NewNATSBoard(publisher DevicePublisher) *NATSBoard {
	return &NATSBoard{publisher: publisher}
}

func (b *NATSBoard) publish(device, action string, value float64) error {
	return b.publisher.PublishDeviceCommand(&events.DeviceCommandEvent{
		Device: device,
		Action: action,
		Value:  value,
	})
}

// SetIndicator implements Board
func (b *NATSBoard) SetIndicator(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if err := b.publish(DeviceIndicator, onOff(on), boolValue(on)); err != nil {
		return err
	}
	b.state.Indicator = on
	return nil
}

// SetLight implements Board
func (b *NATSBoard) SetLight(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if err := b.publish(DeviceLight, onOff(on), boolValue(on)); err != nil {
		return err
	}
	b.state.Light = on
	return nil
}

// ToggleLight implements Board
func (b *NATSBoard) ToggleLight() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	next := !b.state.Light
	if err := b.publish(DeviceLight, onOff(next), boolValue(next)); err != nil {
		return err
	}
	b.state.Light = next
	return nil
}

// SetFanDuty implements Board
func (b *NATSBoard) SetFanDuty(duty float64) error {
	if err := checkDuty(duty); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if err := b.publish(DeviceFan, "duty", duty); err != nil {
		return err
	}
	b.state.FanDuty = duty
	return nil
}

// Release implements Board. Every output is commanded off even if an
// earlier publish fails.
func (b *NATSBoard) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.released = true

	var first error
	for _, cmd := range []struct {
		device string
		action string
	}{
		{DeviceIndicator, "off"},
		{DeviceLight, "off"},
		{DeviceFan, "duty"},
	} {
		if err := b.publish(cmd.device, cmd.action, 0); err != nil && first == nil {
			first = err
		}
	}
	b.state = State{}
	return first
}

// State returns the last commanded outputs
func (b *NATSBoard) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func boolValue(on bool) float64 {
	if on {
		return 1
	}
	return 0
}
