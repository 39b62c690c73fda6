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
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// GPIOBoard drives two digital outputs and one PWM output on the host's GPIO header
type GPIOBoard struct {
	mu        sync.Mutex
	indicator gpio.PinIO
	light     gpio.PinIO
	fan       gpio.PinIO
	fanFreq   physic.Frequency
	lightOn   bool
	released  bool
}

// NewGPIOBoard initializes the host drivers and claims the configured pins.
// Every output starts low.
func NewGPIOBoard(cfg config.ActuatorConfig) (*GPIOBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPIO host drivers: %w", err)
	}

	lookup := func(name string) (gpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("GPIO pin %q not found", name)
		}
		return p, nil
	}

	b := &GPIOBoard{fanFreq: physic.Frequency(cfg.FanFrequency) * physic.Hertz}
	var err error
	if b.indicator, err = lookup(cfg.IndicatorPin); err != nil {
		return nil, err
	}
	if b.light, err = lookup(cfg.LightPin); err != nil {
		return nil, err
	}
	if b.fan, err = lookup(cfg.FanPin); err != nil {
		return nil, err
	}

	for _, p := range []gpio.PinIO{b.indicator, b.light, b.fan} {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("failed to drive %s low: %w", p.Name(), err)
		}
	}

	logging.Sugar.Infow("🔌 GPIO board ready",
		"indicator", cfg.IndicatorPin,
		"light", cfg.LightPin,
		"fan", cfg.FanPin,
		"fan_frequency_hz", cfg.FanFrequency,
	)
	return b, nil
}

// SetIndicator implements Board
func (b *GPIOBoard) SetIndicator(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if err := b.indicator.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("indicator %s: %w", onOff(on), err)
	}
	logging.LogActuator(DeviceIndicator, onOff(on))
	return nil
}

// SetLight implements Board
func (b *GPIOBoard) SetLight(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	if err := b.light.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("light %s: %w", onOff(on), err)
	}
	b.lightOn = on
	logging.LogActuator(DeviceLight, onOff(on))
	return nil
}

// ToggleLight implements Board
func (b *GPIOBoard) ToggleLight() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}
	next := !b.lightOn
	if err := b.light.Out(gpio.Level(next)); err != nil {
		return fmt.Errorf("light toggle: %w", err)
	}
	b.lightOn = next
	return nil
}

// SetFanDuty implements Board
func (b *GPIOBoard) SetFanDuty(duty float64) error {
	if err := checkDuty(duty); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return ErrReleased
	}

	if duty == 0 {
		if err := b.fan.Out(gpio.Low); err != nil {
			return fmt.Errorf("fan off: %w", err)
		}
	} else {
		d := gpio.Duty(duty * float64(gpio.DutyMax))
		if err := b.fan.PWM(d, b.fanFreq); err != nil {
			return fmt.Errorf("fan duty %.3f: %w", duty, err)
		}
	}

	logging.LogActuator(DeviceFan, "duty", zap.Float64("duty", duty))
	return nil
}

// Release implements Board
func (b *GPIOBoard) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return nil
	}
	b.released = true

	var errs []error
	for _, p := range []gpio.PinIO{b.indicator, b.light, b.fan} {
		if err := p.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("%s halt: %w", p.Name(), err))
		}
	}

	logging.LogActuator("board", "release")
	return errors.Join(errs...)
}
