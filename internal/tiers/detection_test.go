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

package tiers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/config"
)

func up(context.Context) bool   { return true }
func down(context.Context) bool { return false }

func TestDetectTiers(t *testing.T) {
	tests := []struct {
		name         string
		checks       Checks
		wantTier     Tier
		wantDegraded bool
		wantReason   string
	}{
		{
			name:     "everything up",
			checks:   Checks{STT: up, Classifier: up, LLM: up, TTS: up, NATS: up},
			wantTier: TierFull,
		},
		{
			name:     "no llm configured",
			checks:   Checks{STT: up, Classifier: up, TTS: up},
			wantTier: TierClassifier,
		},
		{
			name:         "classifier down",
			checks:       Checks{STT: up, Classifier: down, LLM: up, TTS: up},
			wantTier:     TierLLM,
			wantDegraded: true,
			wantReason:   "intent classifier unavailable",
		},
		{
			name:         "nothing to resolve with",
			checks:       Checks{STT: up, Classifier: down},
			wantTier:     TierFallback,
			wantDegraded: true,
			wantReason:   "intent classifier unavailable",
		},
		{
			name:         "stt down",
			checks:       Checks{STT: down, Classifier: up, LLM: up},
			wantTier:     TierFull,
			wantDegraded: true,
			wantReason:   "STT service unavailable",
		},
		{
			name:         "tts down",
			checks:       Checks{STT: up, Classifier: up, TTS: down},
			wantTier:     TierClassifier,
			wantDegraded: true,
			wantReason:   "TTS service unavailable",
		},
		{
			name:         "configured llm unreachable",
			checks:       Checks{STT: up, Classifier: up, LLM: down},
			wantTier:     TierClassifier,
			wantDegraded: true,
			wantReason:   "LLM unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(tt.checks, time.Minute, time.Second)
			caps := d.Detect(context.Background())

			if caps.Tier != tt.wantTier {
				t.Errorf("Tier = %v, want %v", caps.Tier, tt.wantTier)
			}
			if caps.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", caps.Degraded, tt.wantDegraded)
			}
			if caps.DegradationReason != tt.wantReason {
				t.Errorf("DegradationReason = %q, want %q", caps.DegradationReason, tt.wantReason)
			}
			if d.Capabilities() != caps {
				t.Errorf("Capabilities() = %+v, want %+v", d.Capabilities(), caps)
			}
		})
	}
}

func TestTierChangeCallback(t *testing.T) {
	classifierUp := true
	d := NewDetector(Checks{
		Classifier: func(context.Context) bool { return classifierUp },
		LLM:        up,
	}, time.Minute, time.Second)

	var changes [][2]Tier
	d.SetTierChangeCallback(func(old, new Tier) {
		changes = append(changes, [2]Tier{old, new})
	})

	d.Detect(context.Background())
	d.Detect(context.Background())
	classifierUp = false
	d.Detect(context.Background())

	want := [][2]Tier{{TierFallback, TierFull}, {TierFull, TierLLM}}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestHTTPCheck(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	check := HTTPCheck(srv.Client(), srv.URL)
	ctx := context.Background()

	if !check(ctx) {
		t.Error("Expected 200 to be reachable")
	}

	status = http.StatusNotFound
	if !check(ctx) {
		t.Error("Expected 404 to count as reachable")
	}

	status = http.StatusServiceUnavailable
	if check(ctx) {
		t.Error("Expected 503 to be unreachable")
	}

	if HTTPCheck(srv.Client(), "http://127.0.0.1:1/")(ctx) {
		t.Error("Expected closed port to be unreachable")
	}
}

func TestChecksFromConfig(t *testing.T) {
	cfg := &config.Config{
		STT:    config.STTConfig{Engine: "whisper"},
		Intent: config.IntentConfig{URL: "http://localhost:12101/api/text-to-intent"},
		TTS:    config.TTSConfig{Enabled: false},
	}

	checks := ChecksFromConfig(cfg, nil)
	if checks.STT != nil {
		t.Error("Expected no STT probe for the local whisper engine")
	}
	if checks.Classifier == nil {
		t.Error("Expected a classifier probe")
	}
	if checks.TTS != nil || checks.LLM != nil || checks.NATS != nil {
		t.Error("Expected disabled services to have no probe")
	}

	if got := originOf("http://localhost:12101/api/text-to-intent"); got != "http://localhost:12101/" {
		t.Errorf("originOf = %q, want %q", got, "http://localhost:12101/")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	d := NewDetector(Checks{Classifier: up}, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if d.Capabilities().Tier != TierClassifier {
		t.Errorf("Tier = %v, want %v", d.Capabilities().Tier, TierClassifier)
	}
}
