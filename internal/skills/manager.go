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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/logging"
	"go.uber.org/zap"
)

// Manager routes symbolic actions to the skill that owns them
type Manager struct {
	mu     sync.RWMutex
	skills []Skill
	routes map[string]Skill
	stats  map[string]*SkillInfo
}

// NewManager creates an empty skill manager
func NewManager() *Manager {
	return &Manager{
		routes: make(map[string]Skill),
		stats:  make(map[string]*SkillInfo),
	}
}

// Register adds a skill. An action may be owned by one skill only.
func (m *Manager) Register(skill Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stats[skill.Name()]; exists {
		return fmt.Errorf("skill %s already registered", skill.Name())
	}
	for _, action := range skill.Actions() {
		if owner, exists := m.routes[action]; exists {
			return fmt.Errorf("action %s already handled by %s", action, owner.Name())
		}
	}

	for _, action := range skill.Actions() {
		m.routes[action] = skill
	}
	m.skills = append(m.skills, skill)
	m.stats[skill.Name()] = &SkillInfo{
		Name:    skill.Name(),
		Actions: append([]string(nil), skill.Actions()...),
	}

	logging.Logger.Info("Registered skill",
		zap.String("skill", skill.Name()),
		zap.Strings("actions", skill.Actions()))
	return nil
}

// Dispatch executes an action and returns the response to speak. Skill
// errors are logged and contained in the response.
func (m *Manager) Dispatch(ctx context.Context, action string) *SkillResponse {
	m.mu.RLock()
	skill, ok := m.routes[action]
	m.mu.RUnlock()

	if !ok {
		logging.LogWarn("No skill found to handle action", zap.String("action", action))
		return &SkillResponse{
			Success:    false,
			Message:    UnknownCommand,
			SpeechText: UnknownCommand,
			Error:      "unknown action",
		}
	}

	start := time.Now()
	response, err := skill.HandleAction(ctx, action)
	duration := time.Since(start)

	if response == nil {
		response = &SkillResponse{SpeechText: UnknownCommand}
	}
	response.ResponseTime = duration
	if err != nil {
		response.Success = false
		response.Error = err.Error()
		logging.LogError(err, "Skill action failed",
			zap.String("skill", skill.Name()),
			zap.String("action", action))
	}

	m.record(skill.Name(), err)

	logging.Logger.Info("Dispatched action",
		zap.String("skill", skill.Name()),
		zap.String("action", action),
		zap.Bool("success", response.Success),
		zap.Duration("duration", duration))

	return response
}

func (m *Manager) record(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.stats[name]
	info.UsageCount++
	info.LastUsed = time.Now()
	if err != nil {
		info.ErrorCount++
		info.LastError = err.Error()
	}
}

// ListSkills returns information about all registered skills sorted by name
func (m *Manager) ListSkills() []SkillInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SkillInfo, 0, len(m.stats))
	for _, info := range m.stats {
		copied := *info
		copied.Actions = append([]string(nil), info.Actions...)
		infos = append(infos, copied)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Shutdown tears down every registered skill
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	skills := append([]Skill(nil), m.skills...)
	m.mu.RUnlock()

	var errs []error
	for _, skill := range skills {
		if err := skill.Teardown(ctx); err != nil {
			logging.LogWarn("Error shutting down skill",
				zap.String("skill", skill.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", skill.Name(), err))
		}
	}
	return errors.Join(errs...)
}
