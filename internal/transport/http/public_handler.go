// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"fmt"
	"net/http"

	"github.com/opentrusty/transparencia/internal/records"
)

// PublicListRecords lists the public records of the resolved municipality
// @Summary List public records
// @Description List public budgets, expenditures, projects or contracts. Tenant scope and visibility are fixed by the server.
// @Tags Public
// @Produce json
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Param kind path string true "budgets, expenditures, projects or contracts"
// @Param year query int false "Year"
// @Param department query string false "Department"
// @Param category query string false "Category"
// @Param comuna query string false "Comuna"
// @Param status query string false "Project or contract status"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} map[string]any
// @Failure 404 {object} map[string]string
// @Router /public/{kind} [get]
func (h *Handler) PublicListRecords(w http.ResponseWriter, r *http.Request) {
	kind, err := records.ParseKind(pathParam(r, "kind"))
	if err != nil || !records.IsPublicKind(kind) {
		respondDomainError(w, r, fmt.Errorf("%w: %q", records.ErrUnknownKind, pathParam(r, "kind")))
		return
	}

	q := r.URL.Query()
	rows, err := h.public.ListPublic(r.Context(), kind, GetTenantID(r.Context()), records.FiltersFromQuery(q), records.PageFromQuery(q))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// PublicMapProjects lists public projects that carry coordinates
// @Summary Project map
// @Description Public projects with latitude and longitude
// @Tags Public
// @Produce json
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Success 200 {array} records.Project
// @Failure 403 {object} map[string]string
// @Router /public/map/projects [get]
func (h *Handler) PublicMapProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projects, err := h.public.MapProjects(r.Context(), GetTenantID(r.Context()), records.FiltersFromQuery(q), records.PageFromQuery(q))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// PublicStats returns aggregates over public records
// @Summary Public statistics
// @Description Budget, expenditure, project and contract totals over public records
// @Tags Public
// @Produce json
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Success 200 {object} records.Stats
// @Router /public/stats [get]
func (h *Handler) PublicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.public.Stats(r.Context(), GetTenantID(r.Context()), records.FiltersFromQuery(r.URL.Query()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// PublicFeatures returns the municipality profile and its effective features
// @Summary Municipality features
// @Description Public profile of the resolved municipality with its feature switches
// @Tags Public
// @Produce json
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Success 200 {object} map[string]any
// @Router /public/features [get]
func (h *Handler) PublicFeatures(w http.ResponseWriter, r *http.Request) {
	t := GetTenant(r.Context())
	flags, err := h.flags.Evaluate(r.Context(), t.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	enabled := make(map[string]bool, len(flags))
	for _, f := range flags {
		enabled[f.Key] = f.Enabled
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"municipality": map[string]string{"slug": t.Slug, "name": t.Name},
		"features":     enabled,
	})
}
