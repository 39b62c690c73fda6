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

package intent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/security"
)

// DefaultMinConfidence is the classifier score needed to act on an intent
const DefaultMinConfidence = 0.80

// FallbackResponse is spoken when no tier produced anything
const FallbackResponse = "Sorry, I didn't understand."

// Source identifies which tier produced a resolution
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceLLM        Source = "llm"
	SourceFallback   Source = "fallback"
	SourceRecording  Source = "recording"
)

// Responder produces a free-form spoken reply for a command
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Resolution is the outcome of resolving one command. Exactly one of Action
// and Response is set.
type Resolution struct {
	Action     string        `json:"action,omitempty"`
	Response   string        `json:"response,omitempty"`
	Source     Source        `json:"source"`
	Intent     string        `json:"intent,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
}

// Resolver runs the classifier → LLM → fallback cascade
type Resolver struct {
	classifier    Classifier
	responder     Responder
	minConfidence float64
}

// NewResolver creates a resolver. A nil responder disables the LLM tier.
func NewResolver(classifier Classifier, responder Responder, minConfidence float64) *Resolver {
	return &Resolver{
		classifier:    classifier,
		responder:     responder,
		minConfidence: minConfidence,
	}
}

// Resolve never fails: transport errors degrade to the next tier and the
// last tier always answers.
func (r *Resolver) Resolve(ctx context.Context, command string) Resolution {
	start := time.Now()
	safeCommand := security.SanitizeLogInput(command)

	var res Result
	if r.classifier != nil {
		classified, err := r.classifier.Classify(ctx, command)
		if err != nil {
			logging.LogWarn("Intent classifier unavailable",
				zap.String("command", safeCommand),
				zap.Error(err),
			)
		} else {
			res = classified
		}
	}

	if res.Name != "" && res.Confidence >= r.minConfidence {
		out := Resolution{
			Action:     res.Name,
			Source:     SourceClassifier,
			Intent:     res.Name,
			Confidence: res.Confidence,
			Duration:   time.Since(start),
		}
		logging.LogIntentResolution(string(out.Source),
			zap.String("intent", res.Name),
			zap.Float64("confidence", res.Confidence),
			zap.Duration("processing_time", out.Duration),
		)
		return out
	}

	if r.responder != nil {
		reply, err := r.responder.Respond(ctx, command)
		reply = strings.TrimSpace(reply)
		switch {
		case err != nil:
			logging.LogWarn("LLM fallback failed", zap.String("command", safeCommand), zap.Error(err))
		case reply == "":
			logging.LogWarn("LLM fallback returned an empty reply", zap.String("command", safeCommand))
		default:
			out := Resolution{
				Response:   reply,
				Source:     SourceLLM,
				Intent:     res.Name,
				Confidence: res.Confidence,
				Duration:   time.Since(start),
			}
			logging.LogIntentResolution(string(out.Source),
				zap.String("classifier_intent", res.Name),
				zap.Float64("classifier_confidence", res.Confidence),
				zap.Duration("processing_time", out.Duration),
			)
			return out
		}
	}

	out := Resolution{
		Response:   FallbackResponse,
		Source:     SourceFallback,
		Intent:     res.Name,
		Confidence: res.Confidence,
		Duration:   time.Since(start),
	}
	logging.LogIntentResolution(string(out.Source),
		zap.String("command", safeCommand),
		zap.Float64("classifier_confidence", res.Confidence),
	)
	return out
}
