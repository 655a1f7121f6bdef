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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/rbac"
)

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
	now                func() time.Time
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
		now:                time.Now,
	}
}

// CreateUserInput carries the fields for a new back-office account
type CreateUserInput struct {
	TenantID string
	Email    string
	FullName string
	Role     string
	Password string
}

// UpdateUserInput carries optional changes; nil fields are left untouched
type UpdateUserInput struct {
	FullName *string
	Role     *string
	Active   *bool
	Password *string
}

// CreateUser validates and stores a new account with its password.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput, actorID string) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, ErrNameRequired
	}
	role, err := validateRoleForScope(in.Role, in.TenantID)
	if err != nil {
		return nil, err
	}
	if !isStrongPassword(in.Password) {
		return nil, ErrWeakPassword
	}

	if existing, err := s.repo.GetByEmail(ctx, in.TenantID, email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:        id.NewUUIDv7(),
		TenantID:  in.TenantID,
		Email:     email,
		FullName:  fullName,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user, hash); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: in.TenantID,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{"user_id": user.ID, "email": email, "role": string(role)},
	})

	return user, nil
}

// Authenticate authenticates a user with email and password. An empty
// tenantID authenticates platform users.
func (s *Service) Authenticate(ctx context.Context, tenantID, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, tenantID, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: tenantID,
			Resource: email,
			Result:   audit.ResultFailure,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: tenantID,
			ActorID:  user.ID,
			Resource: "login",
			Result:   audit.ResultFailure,
			Metadata: map[string]any{audit.AttrReason: "disabled"},
		})
		return nil, ErrAccountDisabled
	}

	if user.IsLocked(s.now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: tenantID,
			ActorID:  user.ID,
			Resource: "login",
			Result:   audit.ResultFailure,
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		newAttempts := user.FailedLoginAttempts + 1
		var newLockedUntil *time.Time

		if newAttempts >= s.lockoutMaxAttempts {
			until := s.now().Add(s.lockoutDuration)
			newLockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				TenantID: tenantID,
				ActorID:  user.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: newAttempts},
			})
		}

		if err := s.repo.UpdateLockout(ctx, user.ID, newAttempts, newLockedUntil); err != nil {
			slog.ErrorContext(ctx, "failed to update lockout", logger.UserID(user.ID), logger.Error(err))
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: tenantID,
			ActorID:  user.ID,
			Resource: "login",
			Result:   audit.ResultFailure,
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: newAttempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.repo.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
			slog.ErrorContext(ctx, "failed to reset lockout", logger.UserID(user.ID), logger.Error(err))
		}
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		TenantID: tenantID,
		ActorID:  user.ID,
		Resource: "login",
	})

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// GetTenantUser retrieves a user by ID, requiring it to belong to tenantID
func (s *Service) GetTenantUser(ctx context.Context, tenantID, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TenantID != tenantID {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers lists the accounts of a tenant
func (s *Service) ListUsers(ctx context.Context, tenantID string, limit, offset int) ([]*User, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

// UpdateUser applies in to the account identified by tenantID and userID
func (s *Service) UpdateUser(ctx context.Context, tenantID, userID string, in UpdateUserInput, actorID string) (*User, error) {
	user, err := s.GetTenantUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, ErrNameRequired
		}
		user.FullName = name
		changed = append(changed, "full_name")
	}
	if in.Role != nil {
		role, err := validateRoleForScope(*in.Role, user.TenantID)
		if err != nil {
			return nil, err
		}
		user.Role = role
		changed = append(changed, "role")
	}
	if in.Active != nil {
		user.Active = *in.Active
		changed = append(changed, "active")
	}
	if in.Password != nil {
		if !isStrongPassword(*in.Password) {
			return nil, ErrWeakPassword
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
			return nil, err
		}
		changed = append(changed, "password")
	}

	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{"user_id": user.ID, "fields": changed},
	})

	return user, nil
}

// DeleteUser soft-deletes an account. Users cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, tenantID, userID, actorID string) error {
	if userID == actorID {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, tenantID, userID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{"user_id": userID},
	})
	return nil
}

// Helper functions
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) < 3 || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// validateRoleForScope enforces that superadmins are platform users and that
// every other role is bound to a tenant.
func validateRoleForScope(name, tenantID string) (rbac.Role, error) {
	role, err := rbac.ParseRole(name)
	if err != nil {
		return "", ErrInvalidRole
	}
	if role.IsPlatform() != (tenantID == "") {
		return "", ErrInvalidRole
	}
	return role, nil
}
