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
	"errors"
	"net/http"

	"github.com/opentrusty/transparencia/internal/demo"
	"github.com/opentrusty/transparencia/internal/tenant"
)

// ListTenants handles listing municipalities
// @Summary List Tenants
// @Description List platform municipalities (Superadmin Only)
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param status query string false "active, suspended or provisioning"
// @Success 200 {array} tenant.Tenant
// @Failure 403 {object} map[string]string
// @Router /platform/tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.ListTenants(r.Context(), tenant.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tenants)
}

// CreateTenant handles tenant creation
// @Summary Create Tenant
// @Description Provision a municipality, optionally with its first administrator
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body tenant.CreateInput true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /platform/tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tenants.CreateTenant(r.Context(), req, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// GetTenant returns one municipality
// @Summary Get Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /platform/tenants/{id} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.GetTenant(r.Context(), pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateTenant changes name, plan or contact details
// @Summary Update Tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Param request body tenant.UpdateInput true "Changes"
// @Success 200 {object} tenant.Tenant
// @Router /platform/tenants/{id} [put]
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.UpdateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tenants.UpdateTenant(r.Context(), pathParam(r, "id"), req, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// SuspendTenantRequest carries the suspension reason
type SuspendTenantRequest struct {
	Reason string `json:"reason" example:"contract expired"`
}

// SuspendTenant blocks public and back-office traffic for a municipality
// @Summary Suspend Tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Param request body SuspendTenantRequest false "Reason"
// @Success 200 {object} tenant.Tenant
// @Failure 409 {object} map[string]string
// @Router /platform/tenants/{id}/suspend [post]
func (h *Handler) SuspendTenant(w http.ResponseWriter, r *http.Request) {
	var req SuspendTenantRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tenants.SuspendTenant(r.Context(), pathParam(r, "id"), actorID(r), req.Reason)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// ReactivateTenant returns a municipality to service
// @Summary Reactivate Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 409 {object} map[string]string
// @Router /platform/tenants/{id}/reactivate [post]
func (h *Handler) ReactivateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.ReactivateTenant(r.Context(), pathParam(r, "id"), actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// SeedDemoData fills an empty municipality with sample records
// @Summary Seed demo data
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 201 {object} demo.Result
// @Failure 409 {object} map[string]string
// @Router /platform/tenants/{id}/demo-data [post]
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenants.GetTenant(r.Context(), pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	res, err := h.seeder.Seed(r.Context(), t.ID, actorID(r))
	if err != nil {
		if errors.Is(err, demo.ErrAlreadySeeded) {
			respondError(w, http.StatusConflict, codeConflict, err.Error())
			return
		}
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// DeleteTenant refuses every deletion attempt
// @Summary Delete Tenant (blocked)
// @Description Municipalities are never deleted; every attempt is audited as blocked
// @Tags Tenant
// @Produce json
// @Param id path string true "Tenant ID"
// @Failure 403 {object} map[string]string
// @Router /platform/tenants/{id} [delete]
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	actor := ""
	if p, err := h.principalFromRequest(r); err == nil {
		actor = p.UserID
	}

	err := h.tenants.DeleteTenant(r.Context(), pathParam(r, "id"), actor, getClientIP(r), r.UserAgent())
	respondDomainError(w, r, err)
}
