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
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Result is what the classifier made of a command. Name is empty when
// nothing matched.
type Result struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Classifier maps command text to a named intent
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// HTTPClassifier posts text to a text-to-intent endpoint that answers
// {"intent": {"name": ..., "confidence": ...}}.
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
}

// NewHTTPClassifier creates a classifier client
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify implements Classifier
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(text))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("intent request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read intent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("intent service returned status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return Result{}, fmt.Errorf("intent service returned invalid JSON")
	}

	parsed := gjson.GetManyBytes(body, "intent.name", "intent.confidence")
	confidence := parsed[1].Float()
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("intent service returned confidence %v outside [0, 1]", confidence)
	}
	return Result{
		Name:       parsed[0].String(),
		Confidence: confidence,
	}, nil
}
