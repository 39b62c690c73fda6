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
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"go.uber.org/zap"
)

// Tier is the best intent resolution path currently reachable
type Tier string

const (
	TierFull       Tier = "full"       // classifier with LLM fallback
	TierClassifier Tier = "classifier" // classifier only
	TierLLM        Tier = "llm"        // LLM replies only, no actions
	TierFallback   Tier = "fallback"   // canned reply only
)

// Check reports whether one dependency is reachable
type Check func(ctx context.Context) bool

// Checks holds one probe per dependency. A nil check means the dependency
// is not in use and counts as available.
type Checks struct {
	STT        Check
	Classifier Check
	LLM        Check
	TTS        Check
	NATS       Check
}

// ServiceAvailability tracks availability of each dependency
type ServiceAvailability struct {
	STT        bool `json:"stt_available"`
	Classifier bool `json:"classifier_available"`
	LLM        bool `json:"llm_available"`
	TTS        bool `json:"tts_available"`
	NATS       bool `json:"nats_available"`
}

// Capabilities is the result of the last detection pass
type Capabilities struct {
	Tier              Tier                `json:"tier"`
	Services          ServiceAvailability `json:"services"`
	LastDetected      time.Time           `json:"last_detected"`
	Degraded          bool                `json:"degraded"`
	DegradationReason string              `json:"degradation_reason,omitempty"`
}

// Detector probes the assistant's dependencies and reports which
// resolution tier is available
type Detector struct {
	mutex        sync.RWMutex
	capabilities Capabilities

	checks        Checks
	llmConfigured bool

	detectionInterval time.Duration
	healthTimeout     time.Duration

	onTierChange func(old, new Tier)
}

// NewDetector creates a detector over the given checks
func NewDetector(checks Checks, interval, timeout time.Duration) *Detector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Detector{
		checks:            checks,
		llmConfigured:     checks.LLM != nil,
		detectionInterval: interval,
		healthTimeout:     timeout,
		capabilities: Capabilities{
			Tier:         TierFallback,
			LastDetected: time.Now(),
		},
	}
}

// ChecksFromConfig builds HTTP probes for the configured services.
// natsConnected may be nil when no bus is configured.
func ChecksFromConfig(cfg *config.Config, natsConnected func() bool) Checks {
	client := &http.Client{Timeout: 5 * time.Second}

	checks := Checks{
		Classifier: HTTPCheck(client, originOf(cfg.Intent.URL)),
	}
	if cfg.STT.Engine == "http" {
		checks.STT = HTTPCheck(client, strings.TrimRight(cfg.STT.URL, "/")+"/health")
	}
	if cfg.TTS.Enabled {
		checks.TTS = HTTPCheck(client, originOf(cfg.TTS.URL))
	}
	if cfg.LLMEnabled() {
		// A configured key counts as available; the API itself is not probed
		checks.LLM = func(context.Context) bool { return true }
	}
	if natsConnected != nil {
		checks.NATS = func(context.Context) bool { return natsConnected() }
	}
	return checks
}

// HTTPCheck reports a service reachable when it answers below 500
func HTTPCheck(client *http.Client, target string) Check {
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Start runs detection immediately and then on every interval until ctx ends
func (d *Detector) Start(ctx context.Context) {
	d.Detect(ctx)

	ticker := time.NewTicker(d.detectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Detect(ctx)
		}
	}
}

// Detect runs one detection pass and returns the new capabilities
func (d *Detector) Detect(ctx context.Context) Capabilities {
	healthCtx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()

	services := ServiceAvailability{
		STT:        run(healthCtx, d.checks.STT),
		Classifier: run(healthCtx, d.checks.Classifier),
		LLM:        d.llmConfigured && run(healthCtx, d.checks.LLM),
		TTS:        run(healthCtx, d.checks.TTS),
		NATS:       run(healthCtx, d.checks.NATS),
	}

	tier := determineTier(services)
	degraded, reason := d.checkDegradation(services)

	d.mutex.Lock()
	oldTier := d.capabilities.Tier
	d.capabilities = Capabilities{
		Tier:              tier,
		Services:          services,
		LastDetected:      time.Now(),
		Degraded:          degraded,
		DegradationReason: reason,
	}
	caps := d.capabilities
	callback := d.onTierChange
	d.mutex.Unlock()

	logging.Logger.Debug("Tier detection completed",
		zap.String("tier", string(tier)),
		zap.Bool("degraded", degraded),
		zap.Bool("stt_available", services.STT),
		zap.Bool("classifier_available", services.Classifier),
		zap.Bool("tts_available", services.TTS))

	if oldTier != tier {
		logging.Sugar.Infow("Resolution tier changed", "old", oldTier, "new", tier, "reason", reason)
		if callback != nil {
			callback(oldTier, tier)
		}
	}

	return caps
}

func run(ctx context.Context, check Check) bool {
	if check == nil {
		return true
	}
	return check(ctx)
}

func determineTier(services ServiceAvailability) Tier {
	switch {
	case services.Classifier && services.LLM:
		return TierFull
	case services.Classifier:
		return TierClassifier
	case services.LLM:
		return TierLLM
	default:
		return TierFallback
	}
}

func (d *Detector) checkDegradation(services ServiceAvailability) (bool, string) {
	if !services.STT {
		return true, "STT service unavailable"
	}
	if !services.Classifier {
		return true, "intent classifier unavailable"
	}
	if d.llmConfigured && !services.LLM {
		return true, "LLM unavailable"
	}
	if !services.TTS {
		return true, "TTS service unavailable"
	}
	return false, ""
}

// Capabilities returns the result of the last detection pass
func (d *Detector) Capabilities() Capabilities {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.capabilities
}

// SetTierChangeCallback sets the callback for tier changes
func (d *Detector) SetTierChangeCallback(callback func(old, new Tier)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onTierChange = callback
}
