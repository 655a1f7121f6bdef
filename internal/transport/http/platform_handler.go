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

	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/notification"
	"github.com/opentrusty/transparencia/internal/version"
)

// GetTenantVersion returns the version a municipality runs
// @Summary Tenant version
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 200 {object} version.Current
// @Router /platform/tenants/{id}/version [get]
func (h *Handler) GetTenantVersion(w http.ResponseWriter, r *http.Request) {
	cur, err := h.versions.CurrentVersion(r.Context(), pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cur)
}

// ValidateRollback checks whether the municipality can return to its
// previous version
// @Summary Validate rollback
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Success 200 {object} version.RollbackCheck
// @Router /platform/tenants/{id}/version/validate-rollback [post]
func (h *Handler) ValidateRollback(w http.ResponseWriter, r *http.Request) {
	check, err := h.versions.ValidateRollback(r.Context(), pathParam(r, "id"), actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

// RollbackRequest carries optional operator notes
type RollbackRequest struct {
	Notes string `json:"notes"`
}

// Rollback returns the municipality to its previous version
// @Summary Rollback
// @Description Requires a recent feasible rollback validation
// @Tags Versions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tenant ID"
// @Param request body RollbackRequest false "Notes"
// @Success 200 {object} version.History
// @Failure 409 {object} map[string]string
// @Router /platform/tenants/{id}/version/rollback [post]
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.versions.Rollback(r.Context(), pathParam(r, "id"), actorID(r), req.Notes)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// ListVersions lists the release catalogue
// @Summary List versions
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} version.SoftwareVersion
// @Router /platform/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.versions.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

// CreateVersion publishes a release
// @Summary Create version
// @Tags Versions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body version.CreateInput true "Release"
// @Success 201 {object} version.SoftwareVersion
// @Failure 409 {object} map[string]string
// @Router /platform/versions [post]
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var in version.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := h.versions.Create(r.Context(), in, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

// LatestVersion returns the newest stable release
// @Summary Latest stable version
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} version.SoftwareVersion
// @Failure 404 {object} map[string]string
// @Router /platform/versions/latest [get]
func (h *Handler) LatestVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.versions.LatestStable(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// AssignVersionRequest targets one or more municipalities
type AssignVersionRequest struct {
	TenantIDs []string `json:"tenant_ids" binding:"required"`
	Version   string   `json:"version" binding:"required" example:"2.1.0"`
	Notes     string   `json:"notes"`
}

// AssignVersion moves municipalities to a release and reports per tenant
// @Summary Assign version
// @Tags Versions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AssignVersionRequest true "Assignment"
// @Success 200 {array} version.AssignResult
// @Router /platform/versions/assign [post]
func (h *Handler) AssignVersion(w http.ResponseWriter, r *http.Request) {
	var req AssignVersionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.TenantIDs) == 0 {
		respondError(w, http.StatusBadRequest, codeValidationFailed, "tenant_ids is required")
		return
	}
	if _, err := version.Normalize(req.Version); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.versions.AssignVersions(r.Context(), req.TenantIDs, req.Version, actorID(r), req.Notes))
}

// VersionHistory lists version changes, optionally for one municipality
// @Summary Version history
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Param tenant_id query string false "Tenant ID"
// @Param limit query int false "Max rows (default 100, max 500)"
// @Success 200 {array} version.History
// @Router /platform/versions/history [get]
func (h *Handler) VersionHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.versions.History(r.Context(), r.URL.Query().Get("tenant_id"), queryInt(r, "limit", 0))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// ListFlags lists the feature catalogue
// @Summary List feature flags
// @Tags Features
// @Produce json
// @Security BearerAuth
// @Success 200 {array} featureflag.Flag
// @Router /platform/features [get]
func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.flags.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// CreateFlag adds a feature to the catalogue
// @Summary Create feature flag
// @Tags Features
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body featureflag.FlagInput true "Flag"
// @Success 201 {object} featureflag.Flag
// @Failure 409 {object} map[string]string
// @Router /platform/features [post]
func (h *Handler) CreateFlag(w http.ResponseWriter, r *http.Request) {
	var in featureflag.FlagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	f, err := h.flags.Create(r.Context(), in, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

// UpdateFlag changes a catalogue entry
// @Summary Update feature flag
// @Tags Features
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Flag key"
// @Param request body featureflag.FlagInput true "Changes"
// @Success 200 {object} featureflag.Flag
// @Router /platform/features/{key} [put]
func (h *Handler) UpdateFlag(w http.ResponseWriter, r *http.Request) {
	var in featureflag.FlagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	f, err := h.flags.Update(r.Context(), pathParam(r, "key"), in, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// DeleteFlag removes a feature and its overrides
// @Summary Delete feature flag
// @Tags Features
// @Security BearerAuth
// @Param key path string true "Flag key"
// @Success 204
// @Router /platform/features/{key} [delete]
func (h *Handler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	if err := h.flags.Delete(r.Context(), pathParam(r, "key"), actorID(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetOverrideRequest forces a feature on or off
type SetOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

// SetFlagOverride forces a feature for one municipality
// @Summary Set feature override
// @Tags Features
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Flag key"
// @Param tenantID path string true "Tenant ID"
// @Param request body SetOverrideRequest true "Override"
// @Success 200 {object} featureflag.Override
// @Router /platform/features/{key}/overrides/{tenantID} [put]
func (h *Handler) SetFlagOverride(w http.ResponseWriter, r *http.Request) {
	var req SetOverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tenantID := pathParam(r, "tenantID")
	if _, err := h.tenants.GetTenant(r.Context(), tenantID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	o, err := h.flags.SetOverride(r.Context(), pathParam(r, "key"), tenantID, req.Enabled, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ClearFlagOverride returns a municipality to the feature default
// @Summary Clear feature override
// @Tags Features
// @Security BearerAuth
// @Param key path string true "Flag key"
// @Param tenantID path string true "Tenant ID"
// @Success 204
// @Router /platform/features/{key}/overrides/{tenantID} [delete]
func (h *Handler) ClearFlagOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.flags.ClearOverride(r.Context(), pathParam(r, "key"), pathParam(r, "tenantID"), actorID(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAllNotifications lists notifications across municipalities
// @Summary List notifications (platform)
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param municipality query string false "Municipality slug"
// @Param type query string false "info, warning, alert or update"
// @Param read query bool false "Read state"
// @Success 200 {array} notification.Notification
// @Router /platform/notifications [get]
func (h *Handler) ListAllNotifications(w http.ResponseWriter, r *http.Request) {
	f := notificationFilter(r)
	if slug := r.URL.Query().Get("municipality"); slug != "" {
		t, err := h.tenants.GetTenantBySlug(r.Context(), slug)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		f.TenantID = t.ID
	}
	list, err := h.notifications.List(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// BulkNotify sends one notification to each listed municipality, or to all
// active ones
// @Summary Bulk notify
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body notification.BulkInput true "Notification and recipients"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /platform/notifications/bulk [post]
func (h *Handler) BulkNotify(w http.ResponseWriter, r *http.Request) {
	var in notification.BulkInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sent, err := h.notifications.BulkCreate(r.Context(), in, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"created":       len(sent),
		"notifications": sent,
	})
}
