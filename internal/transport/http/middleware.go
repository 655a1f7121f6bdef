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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/authz"
	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/observability/metrics"
)

// Tenant Context Principles:
// 1. Public and back-office tenants come from the host or the slug header,
//    never from a caller-supplied tenant id
// 2. A token's tenant must match the resolved tenant; only platform roles cross
// 3. Platform routes carry no tenant context at all

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// MetricsMiddleware records request counts and latency labelled by the
// matched chi route pattern.
func MetricsMiddleware(m *metrics.HTTPMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Observe(r.Method, route, status, time.Since(start))
		})
	}
}

// TenantMiddleware resolves the municipality from the slug header or the
// request host and rejects the request when it is unknown or not active.
func (h *Handler) TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := h.resolver.Resolve(r.Context(), r.Host, r.Header.Get(h.config.SlugHeader))
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), t)))
	})
}

// AuthMiddleware validates the bearer token and adds the principal to context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.principalFromRequest(r)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func (h *Handler) principalFromRequest(r *http.Request) (*authz.Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, authz.ErrUnauthenticated
	}
	sess, err := h.sessions.Validate(raw)
	if err != nil {
		return nil, err
	}
	return &authz.Principal{UserID: sess.UserID, TenantID: sess.TenantID, Role: sess.Role}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequirePermission enforces permission for the principal. When a tenant was
// resolved the principal must also belong to it.
func (h *Handler) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			var err error
			if t := GetTenant(r.Context()); t != nil {
				err = authz.CheckTenant(p, t.ID, permission)
			} else {
				err = authz.Check(p, permission)
			}
			if err != nil {
				h.logDenied(r, p, permission, err)
				respondDomainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) logDenied(r *http.Request, p *authz.Principal, permission string, err error) {
	if p == nil {
		return
	}
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		TenantID:  GetTenantID(r.Context()),
		ActorID:   p.UserID,
		Resource:  permission,
		Result:    audit.ResultFailure,
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{audit.AttrReason: err.Error(), "path": r.URL.Path},
	})
}

// RequireFeature rejects the request when the resolved tenant has the
// feature switched off.
func (h *Handler) RequireFeature(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.flags.IsEnabled(r.Context(), GetTenantID(r.Context()), key) {
				respondDomainError(w, r, fmt.Errorf("%w: %s", featureflag.ErrFeatureDisabled, key))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
