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

package skills

import (
	"context"
	"time"
)

// Actions understood by the dispatcher. The set is closed; anything else is
// answered with UnknownCommand.
const (
	ActionTurnOnLight   = "TurnOnLight"
	ActionTurnOffLight  = "TurnOffLight"
	ActionBlinkLight    = "BlinkLight"
	ActionTurnOnFan     = "TurnOnFan"
	ActionTurnOffFan    = "TurnOffFan"
	ActionIncreaseSpeed = "IncreaseSpeed"
	ActionDecreaseSpeed = "DecreaseSpeed"
)

// UnknownCommand is spoken when no skill handles an action
const UnknownCommand = "Unknown command"

// Skill defines the interface that every built-in skill implements
type Skill interface {
	// Name identifies the skill in logs and listings
	Name() string

	// Actions lists the symbolic actions the skill handles
	Actions() []string

	// HandleAction performs one actuator mutation. The returned response
	// always carries speech text, including on error.
	HandleAction(ctx context.Context, action string) (*SkillResponse, error)

	// Teardown stops any background work owned by the skill
	Teardown(ctx context.Context) error
}

// SkillResponse represents the response from a skill
type SkillResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	SpeechText string `json:"speech_text,omitempty"`

	// Actions performed
	Actions []SkillAction `json:"actions,omitempty"`

	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// SkillAction represents a device mutation performed by a skill
type SkillAction struct {
	Type    string  `json:"type"`
	Target  string  `json:"target"`
	Value   float64 `json:"value,omitempty"`
	Success bool    `json:"success"`
}

// SkillInfo summarizes a registered skill
type SkillInfo struct {
	Name       string    `json:"name"`
	Actions    []string  `json:"actions"`
	UsageCount int64     `json:"usage_count"`
	ErrorCount int64     `json:"error_count"`
	LastUsed   time.Time `json:"last_used,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}
