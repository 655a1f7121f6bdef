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

package featureflag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/observability/logger"
)

// Service manages the catalogue and evaluates flags per tenant
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new feature flag service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, auditLogger: auditLogger, now: time.Now}
}

// FlagInput carries catalogue fields; nil fields are left untouched on update
type FlagInput struct {
	Key            string  `json:"key"`
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	DefaultEnabled *bool   `json:"default_enabled"`
}

// List returns the whole catalogue
func (s *Service) List(ctx context.Context) ([]*Flag, error) {
	return s.repo.List(ctx)
}

// Create adds a flag to the catalogue
func (s *Service) Create(ctx context.Context, in FlagInput, actorID string) (*Flag, error) {
	key := strings.TrimSpace(in.Key)
	if !keyPattern.MatchString(key) {
		return nil, ErrInvalidKey
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, ErrNameRequired
	}
	if _, err := s.repo.Get(ctx, key); err == nil {
		return nil, ErrFlagExists
	} else if !errors.Is(err, ErrFlagNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	flag := &Flag{Key: key, Name: strings.TrimSpace(*in.Name), CreatedAt: now, UpdatedAt: now}
	if in.Description != nil {
		flag.Description = strings.TrimSpace(*in.Description)
	}
	if in.DefaultEnabled != nil {
		flag.DefaultEnabled = *in.DefaultEnabled
	}
	if err := s.repo.Create(ctx, flag); err != nil {
		return nil, fmt.Errorf("failed to create flag: %w", err)
	}
	s.log(ctx, audit.TypeFlagChanged, "", actorID, key, map[string]any{"action": "create", "default_enabled": flag.DefaultEnabled})
	return flag, nil
}

// Update changes catalogue fields of an existing flag
func (s *Service) Update(ctx context.Context, key string, in FlagInput, actorID string) (*Flag, error) {
	flag, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		flag.Name = name
	}
	if in.Description != nil {
		flag.Description = strings.TrimSpace(*in.Description)
	}
	if in.DefaultEnabled != nil {
		flag.DefaultEnabled = *in.DefaultEnabled
	}
	flag.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, flag); err != nil {
		return nil, fmt.Errorf("failed to update flag: %w", err)
	}
	s.log(ctx, audit.TypeFlagChanged, "", actorID, key, map[string]any{"action": "update", "default_enabled": flag.DefaultEnabled})
	return flag, nil
}

// Delete removes a flag and every override of it
func (s *Service) Delete(ctx context.Context, key, actorID string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.log(ctx, audit.TypeFlagChanged, "", actorID, key, map[string]any{"action": "delete"})
	return nil
}

// SetOverride forces key on or off for tenantID
func (s *Service) SetOverride(ctx context.Context, key, tenantID string, enabled bool, actorID string) (*Override, error) {
	if _, err := s.repo.Get(ctx, key); err != nil {
		return nil, err
	}
	o := &Override{TenantID: tenantID, FlagKey: key, Enabled: enabled, UpdatedAt: s.now().UTC()}
	if err := s.repo.SetOverride(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to set override: %w", err)
	}
	s.log(ctx, audit.TypeFlagOverrideSet, tenantID, actorID, key, map[string]any{"enabled": enabled})
	return o, nil
}

// ClearOverride returns tenantID to the flag's default
func (s *Service) ClearOverride(ctx context.Context, key, tenantID, actorID string) error {
	if err := s.repo.DeleteOverride(ctx, tenantID, key); err != nil {
		return err
	}
	s.log(ctx, audit.TypeFlagOverrideClear, tenantID, actorID, key, nil)
	return nil
}

// Evaluate returns every flag resolved for tenantID. Overrides take
// precedence over defaults.
func (s *Service) Evaluate(ctx context.Context, tenantID string) ([]Effective, error) {
	flags, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.ListOverrides(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		byKey[o.FlagKey] = o.Enabled
	}

	out := make([]Effective, 0, len(flags))
	for _, f := range flags {
		e := Effective{Key: f.Key, Name: f.Name, Description: f.Description, Enabled: f.DefaultEnabled}
		if v, ok := byKey[f.Key]; ok {
			e.Enabled = v
			e.Overridden = true
		}
		out = append(out, e)
	}
	return out, nil
}

// IsEnabled reports whether key is on for tenantID. Unknown flags and
// lookup failures evaluate to disabled.
func (s *Service) IsEnabled(ctx context.Context, tenantID, key string) bool {
	flags, err := s.Evaluate(ctx, tenantID)
	if err != nil {
		slog.WarnContext(ctx, "feature flag evaluation failed",
			logger.TenantID(tenantID),
			logger.String("flag_key", key),
			logger.Error(err),
		)
		return false
	}
	for _, f := range flags {
		if f.Key == key {
			return f.Enabled
		}
	}
	return false
}

func (s *Service) log(ctx context.Context, eventType, tenantID, actorID, key string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["flag_key"] = key
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "feature_flag",
		Metadata: metadata,
	})
}
