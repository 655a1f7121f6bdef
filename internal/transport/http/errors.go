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
	"log/slog"
	"net/http"

	"github.com/opentrusty/transparencia/internal/assistant"
	"github.com/opentrusty/transparencia/internal/authz"
	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/notification"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/records"
	"github.com/opentrusty/transparencia/internal/session"
	"github.com/opentrusty/transparencia/internal/tenant"
	"github.com/opentrusty/transparencia/internal/version"
)

// Error codes returned in the "code" field of every error body
const (
	codeTenantNotFound       = "TENANT_NOT_FOUND"
	codeTenantUnavailable    = "TENANT_UNAVAILABLE"
	codeUnauthorized         = "UNAUTHORIZED"
	codeForbidden            = "FORBIDDEN"
	codeFeatureDisabled      = "FEATURE_DISABLED"
	codeValidationFailed     = "VALIDATION_FAILED"
	codeNotFound             = "NOT_FOUND"
	codeConflict             = "CONFLICT"
	codeClassificationFailed = "CLASSIFICATION_FAILED"
	codeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	codeOperationBlocked     = "OPERATION_BLOCKED"
	codeRollbackNotValidated = "ROLLBACK_NOT_VALIDATED"
	codeRateLimited          = "RATE_LIMITED"
	codeInternal             = "INTERNAL_ERROR"
)

// errorMapping translates a domain sentinel into a response. An empty
// message keeps the sentinel's own text.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{tenant.ErrTenantNotFound, http.StatusNotFound, codeTenantNotFound, ""},
	{tenant.ErrTenantUnavailable, http.StatusForbidden, codeTenantUnavailable, ""},
	{tenant.ErrOperationBlocked, http.StatusForbidden, codeOperationBlocked, ""},

	{authz.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthorized, ""},
	{session.ErrSessionExpired, http.StatusUnauthorized, codeUnauthorized, ""},
	{session.ErrSessionInvalid, http.StatusUnauthorized, codeUnauthorized, "invalid token"},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, codeUnauthorized, ""},
	{identity.ErrAccountLocked, http.StatusUnauthorized, codeUnauthorized, ""},
	{identity.ErrAccountDisabled, http.StatusUnauthorized, codeUnauthorized, ""},

	{authz.ErrAccessDenied, http.StatusForbidden, codeForbidden, ""},
	{authz.ErrTenantMismatch, http.StatusForbidden, codeForbidden, ""},
	{identity.ErrSelfDelete, http.StatusForbidden, codeForbidden, ""},
	{featureflag.ErrFeatureDisabled, http.StatusForbidden, codeFeatureDisabled, ""},

	{records.ErrValidation, http.StatusBadRequest, codeValidationFailed, ""},
	{tenant.ErrInvalidSlug, http.StatusBadRequest, codeValidationFailed, ""},
	{tenant.ErrNameRequired, http.StatusBadRequest, codeValidationFailed, ""},
	{tenant.ErrInvalidPlan, http.StatusBadRequest, codeValidationFailed, ""},
	{identity.ErrInvalidEmail, http.StatusBadRequest, codeValidationFailed, ""},
	{identity.ErrWeakPassword, http.StatusBadRequest, codeValidationFailed, ""},
	{identity.ErrInvalidRole, http.StatusBadRequest, codeValidationFailed, ""},
	{identity.ErrNameRequired, http.StatusBadRequest, codeValidationFailed, ""},
	{featureflag.ErrInvalidKey, http.StatusBadRequest, codeValidationFailed, ""},
	{featureflag.ErrNameRequired, http.StatusBadRequest, codeValidationFailed, ""},
	{notification.ErrInvalidType, http.StatusBadRequest, codeValidationFailed, ""},
	{notification.ErrTitleRequired, http.StatusBadRequest, codeValidationFailed, ""},
	{notification.ErrMessageRequired, http.StatusBadRequest, codeValidationFailed, ""},
	{notification.ErrNoRecipients, http.StatusBadRequest, codeValidationFailed, ""},
	{version.ErrInvalidVersion, http.StatusBadRequest, codeValidationFailed, ""},
	{version.ErrInvalidStatus, http.StatusBadRequest, codeValidationFailed, ""},
	{assistant.ErrEmptyQuestion, http.StatusBadRequest, codeValidationFailed, ""},

	{records.ErrRecordNotFound, http.StatusNotFound, codeNotFound, ""},
	{records.ErrUnknownKind, http.StatusNotFound, codeNotFound, "unknown record kind"},
	{identity.ErrUserNotFound, http.StatusNotFound, codeNotFound, ""},
	{featureflag.ErrFlagNotFound, http.StatusNotFound, codeNotFound, ""},
	{featureflag.ErrOverrideNotFound, http.StatusNotFound, codeNotFound, ""},
	{notification.ErrNotificationNotFound, http.StatusNotFound, codeNotFound, ""},
	{version.ErrVersionNotFound, http.StatusNotFound, codeNotFound, ""},
	{version.ErrNoStableVersion, http.StatusNotFound, codeNotFound, ""},
	{version.ErrCheckNotFound, http.StatusNotFound, codeNotFound, ""},

	{tenant.ErrTenantAlreadyExists, http.StatusConflict, codeConflict, ""},
	{tenant.ErrInvalidTransition, http.StatusConflict, codeConflict, ""},
	{identity.ErrUserAlreadyExists, http.StatusConflict, codeConflict, ""},
	{featureflag.ErrFlagExists, http.StatusConflict, codeConflict, ""},
	{version.ErrVersionExists, http.StatusConflict, codeConflict, ""},
	{version.ErrSameVersion, http.StatusConflict, codeConflict, ""},
	{version.ErrVersionConflict, http.StatusConflict, codeConflict, ""},
	{version.ErrRollbackNotValidated, http.StatusConflict, codeRollbackNotValidated, ""},

	{assistant.ErrClassificationFailed, http.StatusServiceUnavailable, codeClassificationFailed, "the assistant could not interpret the question"},
	{assistant.ErrUpstreamUnavailable, http.StatusServiceUnavailable, codeUpstreamUnavailable, "the assistant is temporarily unavailable"},
	{assistant.ErrStreamInterrupted, http.StatusServiceUnavailable, codeUpstreamUnavailable, "the assistant is temporarily unavailable"},
}

// respondDomainError maps err to its status and code. Unmapped errors are
// logged and reported as a generic 500.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *records.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"code":  codeValidationFailed,
			"field": verr.Field,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			respondError(w, m.status, m.code, msg)
			return
		}
	}

	slog.ErrorContext(r.Context(), "unhandled request error",
		logger.Method(r.Method),
		logger.Path(r.URL.Path),
		logger.Error(err),
	)
	respondError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}
