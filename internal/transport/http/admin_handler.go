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
	"strconv"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/notification"
)

// CreateUserRequest represents a new municipal account
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required" example:"funcionario@renca.cl"`
	FullName string `json:"full_name" binding:"required" example:"María Pérez"`
	Role     string `json:"role" binding:"required" example:"funcionario"`
	Password string `json:"password" binding:"required"`
}

// UpdateUserRequest carries optional account changes
type UpdateUserRequest struct {
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
	Password *string `json:"password"`
}

// ListUsers lists the municipality's accounts
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} identity.User
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context(), GetTenantID(r.Context()), queryInt(r, "limit", 100), queryInt(r, "offset", 0))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// CreateUser provisions a municipal account
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User Data"
// @Success 201 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.identity.CreateUser(r.Context(), identity.CreateUserInput{
		TenantID: GetTenantID(r.Context()),
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		Password: req.Password,
	}, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// GetUser returns one account of the municipality
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} identity.User
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.GetTenantUser(r.Context(), GetTenantID(r.Context()), pathParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateUser changes profile, role, status or password
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} identity.User
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.identity.UpdateUser(r.Context(), GetTenantID(r.Context()), pathParam(r, "id"), identity.UpdateUserInput{
		FullName: req.FullName,
		Role:     req.Role,
		Active:   req.Active,
		Password: req.Password,
	}, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser soft-deletes an account
// @Summary Delete user
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.DeleteUser(r.Context(), GetTenantID(r.Context()), pathParam(r, "id"), actorID(r)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notificationFilter reads type, read, limit and offset
func notificationFilter(r *http.Request) notification.Filter {
	q := r.URL.Query()
	f := notification.Filter{
		Type:   q.Get("type"),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	if v, err := strconv.ParseBool(q.Get("read")); err == nil {
		f.Read = &v
	}
	return f
}

// ListNotifications lists the municipality's notifications
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param type query string false "info, warning, alert or update"
// @Param read query bool false "Read state"
// @Success 200 {array} notification.Notification
// @Router /admin/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	f := notificationFilter(r)
	f.TenantID = GetTenantID(r.Context())
	list, err := h.notifications.List(r.Context(), f)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// UnreadNotifications counts unread notifications
// @Summary Unread count
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /admin/notifications/unread-count [get]
func (h *Handler) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

// CreateNotification posts a notification to the municipality
// @Summary Create notification
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body notification.Input true "Notification"
// @Success 201 {object} notification.Notification
// @Router /admin/notifications [post]
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var in notification.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	n, err := h.notifications.Create(r.Context(), GetTenantID(r.Context()), in, actorID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// MarkNotificationRead marks one notification as read
// @Summary Mark notification read
// @Tags Notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Router /admin/notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), GetTenantID(r.Context()), pathParam(r, "id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every notification of the municipality read
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /admin/notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// TenantFeatures lists the effective feature switches of the municipality
// @Summary Municipality features
// @Tags Features
// @Produce json
// @Security BearerAuth
// @Success 200 {array} featureflag.Effective
// @Router /admin/features [get]
func (h *Handler) TenantFeatures(w http.ResponseWriter, r *http.Request) {
	flags, err := h.flags.Evaluate(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// AssistantAnalytics summarizes assistant usage
// @Summary Assistant analytics
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days (default 30, max 365)"
// @Param recent query int false "Recent interactions to include (max 50)"
// @Success 200 {object} interaction.Summary
// @Router /admin/analytics/assistant [get]
func (h *Handler) AssistantAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context(), GetTenantID(r.Context()), queryInt(r, "days", 30), queryInt(r, "recent", 10))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ListAuditEvents lists the municipality's audit trail
// @Summary Audit log
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param type query string false "Event type"
// @Param result query string false "success, failure or blocked"
// @Success 200 {array} audit.Event
// @Router /admin/audit [get]
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.auditStore.List(r.Context(), audit.Filter{
		TenantID: GetTenantID(r.Context()),
		Type:     q.Get("type"),
		Result:   q.Get("result"),
		Limit:    queryInt(r, "limit", 100),
		Offset:   queryInt(r, "offset", 0),
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// TenantVersion returns the software version the municipality runs
// @Summary Current version
// @Tags Versions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} version.Current
// @Router /admin/version [get]
func (h *Handler) TenantVersion(w http.ResponseWriter, r *http.Request) {
	cur, err := h.versions.CurrentVersion(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cur)
}
