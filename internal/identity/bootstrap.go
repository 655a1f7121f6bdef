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
	"fmt"
	"log/slog"

	"github.com/opentrusty/transparencia/internal/rbac"
)

// ActorSystemBootstrap identifies changes made by the bootstrap routine.
const ActorSystemBootstrap = "system:bootstrap"

// BootstrapConfig describes the first platform superadmin
type BootstrapConfig struct {
	Email    string
	Password string
	FullName string
}

// BootstrapService manages the initial initialization of the system
type BootstrapService struct {
	identityService *Service
	cfg             BootstrapConfig
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, cfg BootstrapConfig) *BootstrapService {
	return &BootstrapService{identityService: identityService, cfg: cfg}
}

// Bootstrap creates the configured superadmin when no superadmin exists yet.
// It is a no-op when no email is configured or a superadmin is present.
func (s *BootstrapService) Bootstrap(ctx context.Context) (bool, error) {
	if s.cfg.Email == "" {
		return false, nil
	}

	count, err := s.identityService.repo.CountByRole(ctx, rbac.RoleSuperadmin)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing superadmin: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	user, err := s.identityService.CreateUser(ctx, CreateUserInput{
		Email:    s.cfg.Email,
		FullName: s.cfg.FullName,
		Role:     string(rbac.RoleSuperadmin),
		Password: s.cfg.Password,
	}, ActorSystemBootstrap)
	if err != nil {
		return false, fmt.Errorf("failed to create bootstrap superadmin: %w", err)
	}

	slog.InfoContext(ctx, "bootstrapped initial superadmin", "user_id", user.ID, "email", user.Email)
	return true, nil
}
