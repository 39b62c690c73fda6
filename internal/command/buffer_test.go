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

package command

import (
	"reflect"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBuffer() (*Buffer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	return NewBuffer("assistant", 2*time.Second, clock.Now), clock
}

func TestBuffer_IgnoresSpeechWithoutWakeWord(t *testing.T) {
	b, clock := newTestBuffer()

	for _, transcript := range []string{"turn on light", "hello there", "the assistant is here", ""} {
		if ev := b.Observe(transcript); ev.Kind != None {
			t.Errorf("Observe(%q) = %v, want none", transcript, ev.Kind)
		}
	}
	clock.Advance(10 * time.Second)

	if b.State() != Idle {
		t.Errorf("State() = %v, want idle", b.State())
	}
	if len(b.Words()) != 0 {
		t.Errorf("Words() = %v, want empty", b.Words())
	}
	if ev := b.Tick(); ev.Kind != None {
		t.Errorf("Tick() while idle = %v, want none", ev.Kind)
	}
	if _, ok := b.Remaining(); ok {
		t.Error("Remaining() reported a budget while idle")
	}
}

func TestBuffer_WakeWordThenSilenceFinalizes(t *testing.T) {
	b, clock := newTestBuffer()

	if ev := b.Observe("assistant turn on light"); ev.Kind != WakeDetected {
		t.Fatalf("Observe() = %v, want wake_detected", ev.Kind)
	}
	if b.State() != Capturing {
		t.Fatalf("State() = %v, want capturing", b.State())
	}

	clock.Advance(1999 * time.Millisecond)
	if ev := b.Tick(); ev.Kind != None {
		t.Fatalf("Tick() before timeout = %v, want none", ev.Kind)
	}

	clock.Advance(time.Millisecond)
	ev := b.Tick()
	if ev.Kind != Finalized {
		t.Fatalf("Tick() at timeout = %v, want finalized", ev.Kind)
	}
	if ev.Command != "turn on light" {
		t.Errorf("Command = %q, want %q", ev.Command, "turn on light")
	}
	if b.State() != Idle {
		t.Errorf("State() after finalize = %v, want idle", b.State())
	}

	// exactly one dispatch
	clock.Advance(5 * time.Second)
	if ev := b.Tick(); ev.Kind != None {
		t.Errorf("second Tick() = %v, want none", ev.Kind)
	}
}

func TestBuffer_WakeWordIsCaseInsensitiveExactToken(t *testing.T) {
	tests := []struct {
		transcript string
		want       EventKind
	}{
		{"Assistant turn on fan", WakeDetected},
		{"ASSISTANT", WakeDetected},
		{"assistants turn on fan", None},
		{"my assistant turn on fan", None},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			b, _ := newTestBuffer()
			if ev := b.Observe(tt.transcript); ev.Kind != tt.want {
				t.Errorf("Observe(%q) = %v, want %v", tt.transcript, ev.Kind, tt.want)
			}
		})
	}
}

func TestBuffer_AppendsPreserveOrder(t *testing.T) {
	b, clock := newTestBuffer()

	b.Observe("assistant turn")
	for _, part := range []string{"on the", "light", "in the kitchen please"} {
		clock.Advance(1500 * time.Millisecond)
		if ev := b.Observe(part); ev.Kind != Appended {
			t.Fatalf("Observe(%q) = %v, want appended", part, ev.Kind)
		}
		if ev := b.Tick(); ev.Kind != None {
			t.Fatalf("Tick() right after speech = %v, want none", ev.Kind)
		}
	}

	want := []string{"turn", "on", "the", "light", "in", "the", "kitchen", "please"}
	if got := b.Words(); !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}

	clock.Advance(2 * time.Second)
	ev := b.Tick()
	if ev.Command != "turn on the light in the kitchen please" {
		t.Errorf("Command = %q", ev.Command)
	}
}

func TestBuffer_WakeWordWhileCapturingIsAppended(t *testing.T) {
	b, clock := newTestBuffer()

	b.Observe("assistant turn on")
	if ev := b.Observe("assistant fan"); ev.Kind != Appended {
		t.Errorf("Observe() = %v, want appended", ev.Kind)
	}
	clock.Advance(2 * time.Second)

	if ev := b.Tick(); ev.Command != "turn on assistant fan" {
		t.Errorf("Command = %q, want %q", ev.Command, "turn on assistant fan")
	}
}

func TestBuffer_EmptyBufferIsDropped(t *testing.T) {
	b, clock := newTestBuffer()

	if ev := b.Observe("assistant"); ev.Kind != WakeDetected {
		t.Fatalf("Observe() = %v, want wake_detected", ev.Kind)
	}
	clock.Advance(3 * time.Second)

	ev := b.Tick()
	if ev.Kind != Dropped {
		t.Errorf("Tick() = %v, want dropped", ev.Kind)
	}
	if ev.Command != "" {
		t.Errorf("Command = %q, want empty", ev.Command)
	}
	if b.State() != Idle {
		t.Errorf("State() = %v, want idle", b.State())
	}
}

func TestBuffer_Remaining(t *testing.T) {
	b, clock := newTestBuffer()

	b.Observe("assistant turn on")
	clock.Advance(500 * time.Millisecond)

	left, ok := b.Remaining()
	if !ok || left != 1500*time.Millisecond {
		t.Errorf("Remaining() = %v, %v, want 1.5s, true", left, ok)
	}

	b.Observe("fan")
	if left, _ := b.Remaining(); left != 2*time.Second {
		t.Errorf("Remaining() after speech = %v, want 2s", left)
	}

	clock.Advance(5 * time.Second)
	if left, _ := b.Remaining(); left != 0 {
		t.Errorf("Remaining() past timeout = %v, want 0", left)
	}
}

func TestBuffer_Abort(t *testing.T) {
	b, _ := newTestBuffer()

	if b.Abort() {
		t.Error("Abort() while idle reported a capture")
	}

	b.Observe("assistant turn on")
	if !b.Abort() {
		t.Error("Abort() while capturing reported no capture")
	}
	if b.State() != Idle || len(b.Words()) != 0 {
		t.Errorf("after Abort: state %v words %v", b.State(), b.Words())
	}
}

func TestBuffer_WordsReturnsCopy(t *testing.T) {
	b, _ := newTestBuffer()
	b.Observe("assistant turn on")

	words := b.Words()
	words[0] = "mutated"

	if b.Words()[0] != "turn" {
		t.Errorf("Words() leaked internal slice")
	}
}
