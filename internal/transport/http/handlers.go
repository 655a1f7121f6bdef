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

// @title Transparencia API
// @version 1.0.0
// @description Multi-municipality transparency portal
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/opentrusty/transparencia/internal/assistant"
	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/authz"
	"github.com/opentrusty/transparencia/internal/demo"
	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/interaction"
	"github.com/opentrusty/transparencia/internal/notification"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/observability/metrics"
	"github.com/opentrusty/transparencia/internal/records"
	"github.com/opentrusty/transparencia/internal/session"
	"github.com/opentrusty/transparencia/internal/tenant"
	"github.com/opentrusty/transparencia/internal/version"
)

const maxBodyBytes = 1 << 20

// Services groups the domain services the handlers call
type Services struct {
	Tenants       *tenant.Service
	Resolver      *tenant.Resolver
	Identity      *identity.Service
	Sessions      *session.Manager
	Records       *records.Service
	Public        *records.PublicReader
	Assistant     *assistant.Service
	Analytics     *interaction.Analytics
	Flags         *featureflag.Service
	Notifications *notification.Service
	Versions      *version.Service
	Seeder        *demo.Seeder
	AuditStore    audit.Store
	AuditLogger   audit.Logger
	Metrics       *metrics.HTTPMetrics
}

// RouterConfig holds transport settings
type RouterConfig struct {
	SlugHeader     string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenants       *tenant.Service
	resolver      *tenant.Resolver
	identity      *identity.Service
	sessions      *session.Manager
	records       *records.Service
	public        *records.PublicReader
	assistant     *assistant.Service
	analytics     *interaction.Analytics
	flags         *featureflag.Service
	notifications *notification.Service
	versions      *version.Service
	seeder        *demo.Seeder
	auditStore    audit.Store
	auditLogger   audit.Logger
	metrics       *metrics.HTTPMetrics
	config        RouterConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cfg RouterConfig) *Handler {
	if cfg.SlugHeader == "" {
		cfg.SlugHeader = "X-Tenant-Slug"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Handler{
		tenants:       svc.Tenants,
		resolver:      svc.Resolver,
		identity:      svc.Identity,
		sessions:      svc.Sessions,
		records:       svc.Records,
		public:        svc.Public,
		assistant:     svc.Assistant,
		analytics:     svc.Analytics,
		flags:         svc.Flags,
		notifications: svc.Notifications,
		versions:      svc.Versions,
		seeder:        svc.Seeder,
		auditStore:    svc.AuditStore,
		auditLogger:   svc.AuditLogger,
		metrics:       svc.Metrics,
		config:        cfg,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	if h.metrics != nil {
		r.Use(MetricsMiddleware(h.metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.config.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type", h.config.SlugHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication. The tenant is optional: without one the login is
		// a platform login.
		r.Post("/auth/login", h.Login)
		r.With(h.AuthMiddleware).Get("/auth/me", h.GetCurrentUser)

		// Citizen endpoints (no authentication)
		r.Route("/public", func(r chi.Router) {
			r.Use(h.TenantMiddleware)
			r.Get("/stats", h.PublicStats)
			r.Get("/features", h.PublicFeatures)
			r.With(h.RequireFeature(featureflag.FlagPublicMap)).Get("/map/projects", h.PublicMapProjects)
			r.With(h.RequireFeature(featureflag.FlagAIAssistant)).Post("/assistant/query", h.AssistantQuery)
			r.Get("/{kind}", h.PublicListRecords)
		})

		// Municipal back-office
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.TenantMiddleware)
			r.Use(h.AuthMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequirePermission(authz.PermUsersManage))
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Get("/{id}", h.GetUser)
				r.Put("/{id}", h.UpdateUser)
				r.Delete("/{id}", h.DeleteUser)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.With(h.RequirePermission(authz.PermNotificationsRead)).Get("/", h.ListNotifications)
				r.With(h.RequirePermission(authz.PermNotificationsRead)).Get("/unread-count", h.UnreadNotifications)
				r.With(h.RequirePermission(authz.PermNotificationsManage)).Post("/", h.CreateNotification)
				r.With(h.RequirePermission(authz.PermNotificationsRead)).Post("/read-all", h.MarkAllNotificationsRead)
				r.With(h.RequirePermission(authz.PermNotificationsRead)).Post("/{id}/read", h.MarkNotificationRead)
			})

			r.With(h.RequirePermission(authz.PermFeaturesRead)).Get("/features", h.TenantFeatures)
			r.With(h.RequirePermission(authz.PermAnalyticsRead)).Get("/analytics/assistant", h.AssistantAnalytics)
			r.With(h.RequirePermission(authz.PermAuditRead)).Get("/audit", h.ListAuditEvents)
			r.With(h.RequirePermission(authz.PermRecordsRead)).Get("/version", h.TenantVersion)

			r.Route("/{kind}", func(r chi.Router) {
				r.With(h.RequirePermission(authz.PermRecordsRead)).Get("/", h.ListRecords)
				r.With(h.RequirePermission(authz.PermRecordsWrite)).Post("/", h.CreateRecord)
				r.With(h.RequirePermission(authz.PermRecordsRead)).Get("/{id}", h.GetRecord)
				r.With(h.RequirePermission(authz.PermRecordsWrite)).Put("/{id}", h.UpdateRecord)
				r.With(h.RequirePermission(authz.PermRecordsDelete)).Delete("/{id}", h.DeleteRecord)
			})
		})

		// Platform console
		r.Route("/platform", func(r chi.Router) {
			r.Route("/tenants", func(r chi.Router) {
				// Tenant deletion is refused for every caller before any
				// authentication or role check.
				r.Delete("/{id}", h.DeleteTenant)

				r.Group(func(r chi.Router) {
					r.Use(h.AuthMiddleware)
					r.Use(h.RequirePermission(authz.PermPlatformTenants))
					r.Get("/", h.ListTenants)
					r.Post("/", h.CreateTenant)
					r.Get("/{id}", h.GetTenant)
					r.Put("/{id}", h.UpdateTenant)
					r.Post("/{id}/suspend", h.SuspendTenant)
					r.Post("/{id}/reactivate", h.ReactivateTenant)
					r.Post("/{id}/demo-data", h.SeedDemoData)
				})

				r.Group(func(r chi.Router) {
					r.Use(h.AuthMiddleware)
					r.Use(h.RequirePermission(authz.PermPlatformVersions))
					r.Get("/{id}/version", h.GetTenantVersion)
					r.Post("/{id}/version/validate-rollback", h.ValidateRollback)
					r.Post("/{id}/version/rollback", h.Rollback)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)

				r.Route("/versions", func(r chi.Router) {
					r.Use(h.RequirePermission(authz.PermPlatformVersions))
					r.Get("/", h.ListVersions)
					r.Post("/", h.CreateVersion)
					r.Get("/latest", h.LatestVersion)
					r.Post("/assign", h.AssignVersion)
					r.Get("/history", h.VersionHistory)
				})

				r.Route("/features", func(r chi.Router) {
					r.Use(h.RequirePermission(authz.PermPlatformFeatures))
					r.Get("/", h.ListFlags)
					r.Post("/", h.CreateFlag)
					r.Put("/{key}", h.UpdateFlag)
					r.Delete("/{key}", h.DeleteFlag)
					r.Put("/{key}/overrides/{tenantID}", h.SetFlagOverride)
					r.Delete("/{key}/overrides/{tenantID}", h.ClearFlagOverride)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Use(h.RequirePermission(authz.PermPlatformNotification))
					r.Get("/", h.ListAllNotifications)
					r.Post("/bulk", h.BulkNotify)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "transparencia",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"admin@renca.cl"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *identity.User `json:"user"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate a municipal user (tenant resolved from host or slug header) or a platform user (no tenant)
// @Tags Auth
// @Accept json
// @Produce json
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tenantID := ""
	if h.loginTargetsTenant(r) {
		t, err := h.resolver.Resolve(r.Context(), r.Host, r.Header.Get(h.config.SlugHeader))
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		tenantID = t.ID
	}

	user, err := h.identity.Authenticate(r.Context(), tenantID, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrAccountLocked) || errors.Is(err, identity.ErrAccountDisabled) {
			respondDomainError(w, r, err)
			return
		}
		respondDomainError(w, r, identity.ErrInvalidCredentials)
		return
	}

	token, sess, err := h.sessions.Issue(user.ID, user.TenantID, user.Role)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.UserID(user.ID), logger.Error(err))
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: user})
}

// loginTargetsTenant reports whether the request names a municipality
func (h *Handler) loginTargetsTenant(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get(h.config.SlugHeader)) != "" || h.resolver.SlugFromHost(r.Host) != ""
}

// GetCurrentUser returns the current authenticated user
// @Summary Get Current User
// @Description Retrieve the caller's account and effective permissions
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())

	user, err := h.identity.GetUser(r.Context(), p.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"permissions": authz.PermissionsFor(p.Role),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON reads a bounded JSON body into dst and reports a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, codeValidationFailed, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func actorID(r *http.Request) string {
	return GetUserID(r.Context())
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
