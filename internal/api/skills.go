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

package api

import (
	"net/http"

	"github.com/loqalabs/loqa-assistant/internal/skills"
)

// SkillLister reports the registered skills
type SkillLister interface {
	ListSkills() []skills.SkillInfo
}

// SkillsHandler handles HTTP requests for skill status
type SkillsHandler struct {
	skills SkillLister
}

// NewSkillsHandler creates a new skills API handler
func NewSkillsHandler(lister SkillLister) *SkillsHandler {
	return &SkillsHandler{skills: lister}
}

// HandleSkills handles GET /api/skills
func (h *SkillsHandler) HandleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	list := h.skills.ListSkills()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"skills": list,
		"total":  len(list),
	})
}
