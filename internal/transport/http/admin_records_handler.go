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
	"net/http"

	"github.com/opentrusty/transparencia/internal/records"
)

func recordKind(w http.ResponseWriter, r *http.Request) (records.Kind, bool) {
	kind, err := records.ParseKind(pathParam(r, "kind"))
	if err != nil {
		respondDomainError(w, r, err)
		return "", false
	}
	return kind, true
}

// decodeRecord reads a record of kind from the request body
func decodeRecord(w http.ResponseWriter, r *http.Request, kind records.Kind) (records.Record, bool) {
	rec, err := records.New(kind)
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	if !decodeJSON(w, r, rec) {
		return nil, false
	}
	return rec, true
}

// ListRecords lists records of the municipality, public and private
// @Summary List records
// @Description Back-office listing of budgets, expenditures, projects, contracts or suppliers
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param kind path string true "budgets, expenditures, projects, contracts or suppliers"
// @Param limit query int false "Page size (max 500)"
// @Param offset query int false "Offset"
// @Success 200 {array} map[string]any
// @Failure 403 {object} map[string]string
// @Router /admin/{kind} [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := recordKind(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rows, err := h.records.List(r.Context(), kind, GetTenantID(r.Context()), records.FiltersFromQuery(q), records.PageFromQuery(q))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// CreateRecord stores a new record
// @Summary Create record
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Record kind"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /admin/{kind} [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := recordKind(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r, kind)
	if !ok {
		return
	}

	created, err := h.records.Create(r.Context(), GetTenantID(r.Context()), rec, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetRecord returns one record
// @Summary Get record
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /admin/{kind}/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := recordKind(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Get(r.Context(), kind, GetTenantID(r.Context()), pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// UpdateRecord replaces a record
// @Summary Update record
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/{kind}/{id} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := recordKind(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r, kind)
	if !ok {
		return
	}

	updated, err := h.records.Update(r.Context(), GetTenantID(r.Context()), pathParam(r, "id"), rec, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteRecord removes a record
// @Summary Delete record
// @Tags Records
// @Security BearerAuth
// @Param kind path string true "Record kind"
// @Param id path string true "Record ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /admin/{kind}/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := recordKind(w, r)
	if !ok {
		return
	}
	if err := h.records.Delete(r.Context(), kind, GetTenantID(r.Context()), pathParam(r, "id"), actorID(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
