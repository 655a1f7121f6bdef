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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/rbac"
)

// UserProvisioner creates the initial administrator of a new tenant
type UserProvisioner interface {
	CreateUser(ctx context.Context, in identity.CreateUserInput, actorID string) (*identity.User, error)
}

// Service provides tenant management business logic
type Service struct {
	repo        Repository
	users       UserProvisioner
	cache       Cache
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new tenant service. cache may be nil.
func NewService(repo Repository, users UserProvisioner, cache Cache, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		cache:       cache,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// AdminInput describes the optional first administrator of a tenant
type AdminInput struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// CreateInput carries the fields for a new tenant
type CreateInput struct {
	Slug            string      `json:"slug"`
	Name            string      `json:"name"`
	Plan            string      `json:"plan"`
	ContactName     string      `json:"contact_name"`
	ContactEmail    string      `json:"contact_email"`
	ContactPhone    string      `json:"contact_phone"`
	SoftwareVersion string      `json:"software_version"`
	Admin           *AdminInput `json:"admin,omitempty"`
}

// UpdateInput carries optional changes; nil fields are left untouched.
// The slug is immutable.
type UpdateInput struct {
	Name         *string `json:"name"`
	Plan         *string `json:"plan"`
	ContactName  *string `json:"contact_name"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
}

// CreateTenant provisions a tenant. It starts in provisioning and becomes
// active once the requested initial administrator exists.
func (s *Service) CreateTenant(ctx context.Context, in CreateInput, actorID string) (*Tenant, error) {
	slug, err := NormalizeSlug(in.Slug)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	plan := in.Plan
	if plan == "" {
		plan = PlanBasic
	}
	if !validPlan(plan) {
		return nil, ErrInvalidPlan
	}

	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return nil, ErrTenantAlreadyExists
	} else if !errors.Is(err, ErrTenantNotFound) {
		return nil, fmt.Errorf("failed to check tenant slug: %w", err)
	}

	now := s.now()
	t := &Tenant{
		ID:              id.NewUUIDv7(),
		Slug:            slug,
		Name:            name,
		Status:          StatusProvisioning,
		Plan:            plan,
		ContactName:     strings.TrimSpace(in.ContactName),
		ContactEmail:    strings.TrimSpace(in.ContactEmail),
		ContactPhone:    strings.TrimSpace(in.ContactPhone),
		SoftwareVersion: strings.TrimSpace(in.SoftwareVersion),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if in.Admin != nil {
		if _, err := s.users.CreateUser(ctx, identity.CreateUserInput{
			TenantID: t.ID,
			Email:    in.Admin.Email,
			FullName: in.Admin.FullName,
			Role:     string(rbac.RoleAdmin),
			Password: in.Admin.Password,
		}, actorID); err != nil {
			slog.WarnContext(ctx, "tenant left in provisioning: initial admin not created",
				logger.TenantID(t.ID),
				logger.Error(err),
			)
			return t, fmt.Errorf("failed to create initial admin: %w", err)
		}
	}

	t.Status = StatusActive
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to activate tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: map[string]any{"slug": t.Slug, "plan": t.Plan, "initial_admin": in.Admin != nil},
	})

	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantBySlug retrieves a tenant by slug
func (s *Service) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return nil, ErrTenantNotFound
	}
	return s.repo.GetBySlug(ctx, slug)
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, filter ListFilter) ([]*Tenant, error) {
	return s.repo.List(ctx, filter)
}

// ActiveTenantIDs returns the ids of every active tenant
func (s *Service) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	tenants, err := s.repo.List(ctx, ListFilter{Status: StatusActive})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// RefreshTenant drops cached copies of a tenant whose row was changed by
// another component, such as a version rollout.
func (s *Service) RefreshTenant(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to reload tenant for cache refresh",
			logger.TenantID(id),
			logger.Error(err),
		)
		return
	}
	s.invalidate(ctx, t.Slug)
}

// UpdateTenant applies profile and plan changes.
func (s *Service) UpdateTenant(ctx context.Context, id string, in UpdateInput, actorID string) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		t.Name = name
		changed["name"] = name
	}
	if in.Plan != nil {
		if !validPlan(*in.Plan) {
			return nil, ErrInvalidPlan
		}
		t.Plan = *in.Plan
		changed["plan"] = t.Plan
	}
	if in.ContactName != nil {
		t.ContactName = strings.TrimSpace(*in.ContactName)
		changed["contact_name"] = t.ContactName
	}
	if in.ContactEmail != nil {
		t.ContactEmail = strings.TrimSpace(*in.ContactEmail)
		changed["contact_email"] = t.ContactEmail
	}
	if in.ContactPhone != nil {
		t.ContactPhone = strings.TrimSpace(*in.ContactPhone)
		changed["contact_phone"] = t.ContactPhone
	}

	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	s.invalidate(ctx, t.Slug)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantUpdated,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: changed,
	})
	return t, nil
}

// SuspendTenant blocks all public and admin traffic for a tenant.
func (s *Service) SuspendTenant(ctx context.Context, id, actorID, reason string) (*Tenant, error) {
	return s.transition(ctx, id, StatusSuspended, actorID, reason)
}

// ReactivateTenant returns a suspended or stuck provisioning tenant to service.
func (s *Service) ReactivateTenant(ctx context.Context, id, actorID string) (*Tenant, error) {
	return s.transition(ctx, id, StatusActive, actorID, "")
}

func (s *Service) transition(ctx context.Context, id, to, actorID, reason string) (*Tenant, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	eventType := audit.TypeTenantReactivated
	switch to {
	case StatusSuspended:
		if t.Status == StatusSuspended {
			return nil, ErrInvalidTransition
		}
		eventType = audit.TypeTenantSuspended
	case StatusActive:
		if t.Status == StatusActive {
			return nil, ErrInvalidTransition
		}
	}

	from := t.Status
	t.Status = to
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tenant status: %w", err)
	}
	s.invalidate(ctx, t.Slug)

	metadata := map[string]any{"from": from, "to": to}
	if reason != "" {
		metadata[audit.AttrReason] = reason
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: metadata,
	})
	return t, nil
}

// DeleteTenant never deletes. Every attempt is refused with
// ErrOperationBlocked and recorded as a blocked audit event.
func (s *Service) DeleteTenant(ctx context.Context, id, actorID, ipAddress, userAgent string) error {
	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeTenantDeleteBlock,
		TenantID:  id,
		ActorID:   actorID,
		Resource:  "tenant",
		Result:    audit.ResultBlocked,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Metadata:  map[string]any{audit.AttrReason: "tenant deletion is disabled"},
	})
	return ErrOperationBlocked
}

func (s *Service) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slug); err != nil {
		slog.WarnContext(ctx, "failed to invalidate tenant cache",
			logger.TenantSlug(slug),
			logger.Error(err),
		)
	}
}
