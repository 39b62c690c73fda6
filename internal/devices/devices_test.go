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
	"sync"
	"testing"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/events"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []events.DeviceCommandEvent
	err    error
}

func (m *mockPublisher) PublishDeviceCommand(event *events.DeviceCommandEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

func TestMemoryBoard(t *testing.T) {
	b := NewMemoryBoard()

	if err := b.SetIndicator(true); err != nil {
		t.Fatalf("SetIndicator() error = %v", err)
	}
	if err := b.SetLight(true); err != nil {
		t.Fatalf("SetLight() error = %v", err)
	}
	if err := b.SetFanDuty(0.075); err != nil {
		t.Fatalf("SetFanDuty() error = %v", err)
	}

	want := State{Indicator: true, Light: true, FanDuty: 0.075}
	if got := b.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}

	_ = b.ToggleLight()
	_ = b.ToggleLight()
	_ = b.ToggleLight()
	if b.State().Light {
		t.Error("Light = true after three toggles from on")
	}
	if b.Toggles() != 3 {
		t.Errorf("Toggles() = %d, want 3", b.Toggles())
	}
}

func TestMemoryBoard_RejectsInvalidDuty(t *testing.T) {
	b := NewMemoryBoard()

	for _, duty := range []float64{-0.1, 1.01} {
		if err := b.SetFanDuty(duty); err == nil {
			t.Errorf("SetFanDuty(%v) expected error", duty)
		}
	}
	if b.State().FanDuty != 0 {
		t.Errorf("FanDuty = %v after rejected writes", b.State().FanDuty)
	}
}

func TestMemoryBoard_ReleaseZeroesOutputs(t *testing.T) {
	b := NewMemoryBoard()
	_ = b.SetIndicator(true)
	_ = b.SetLight(true)
	_ = b.SetFanDuty(0.1)

	if err := b.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := b.State(); got != (State{}) {
		t.Errorf("State() after Release = %+v, want zero", got)
	}
	if !b.Released() {
		t.Error("Released() = false")
	}
	if err := b.SetLight(true); !errors.Is(err, ErrReleased) {
		t.Errorf("SetLight() after Release error = %v, want ErrReleased", err)
	}
	if err := b.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestNATSBoard_PublishesCommands(t *testing.T) {
	pub := &mockPublisher{}
	b := NewNATSBoard(pub)

	_ = b.SetIndicator(true)
	_ = b.SetLight(true)
	_ = b.ToggleLight()
	_ = b.SetFanDuty(0.08)

	want := []events.DeviceCommandEvent{
		{Device: DeviceIndicator, Action: "on", Value: 1},
		{Device: DeviceLight, Action: "on", Value: 1},
		{Device: DeviceLight, Action: "off", Value: 0},
		{Device: DeviceFan, Action: "duty", Value: 0.08},
	}
	if len(pub.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(want))
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, pub.events[i], want[i])
		}
	}

	if got := b.State(); got != (State{Indicator: true, Light: false, FanDuty: 0.08}) {
		t.Errorf("State() = %+v", got)
	}
}

func TestNATSBoard_PublishFailureKeepsState(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	b := NewNATSBoard(pub)

	if err := b.SetLight(true); err == nil {
		t.Fatal("SetLight() expected error")
	}
	if b.State().Light {
		t.Error("Light = true after failed publish")
	}
}

func TestNATSBoard_Release(t *testing.T) {
	pub := &mockPublisher{}
	b := NewNATSBoard(pub)
	_ = b.SetFanDuty(0.1)

	if err := b.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	last := pub.events[len(pub.events)-3:]
	for _, e := range last {
		if e.Value != 0 {
			t.Errorf("release event %+v has non-zero value", e)
		}
	}
	if err := b.SetFanDuty(0.1); !errors.Is(err, ErrReleased) {
		t.Errorf("SetFanDuty() after Release error = %v, want ErrReleased", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		publisher DevicePublisher
		wantType  string
		wantErr   bool
	}{
		{"Default is memory", "", nil, "*devices.MemoryBoard", false},
		{"Log backend", "log", nil, "*devices.MemoryBoard", false},
		{"NATS backend", "nats", &mockPublisher{}, "*devices.NATSBoard", false},
		{"NATS without publisher", "nats", nil, "", true},
		{"Unknown backend", "serial", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(config.ActuatorConfig{Backend: tt.backend}, tt.publisher)
			if tt.wantErr {
				if err == nil {
					t.Error("New() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			switch tt.wantType {
			case "*devices.MemoryBoard":
				if _, ok := b.(*MemoryBoard); !ok {
					t.Errorf("New() = %T, want %s", b, tt.wantType)
				}
			case "*devices.NATSBoard":
				if _, ok := b.(*NATSBoard); !ok {
					t.Errorf("New() = %T, want %s", b, tt.wantType)
				}
			}
		})
	}
}
