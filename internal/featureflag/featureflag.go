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

// Package featureflag holds the platform feature catalogue and the
// per-tenant overrides that switch features on or off for a municipality.
package featureflag

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	ErrFlagNotFound     = errors.New("feature flag not found")
	ErrFlagExists       = errors.New("feature flag already exists")
	ErrInvalidKey       = errors.New("invalid feature flag key")
	ErrNameRequired     = errors.New("feature flag name is required")
	ErrOverrideNotFound = errors.New("feature flag override not found")
	ErrFeatureDisabled  = errors.New("feature disabled for this municipality")
)

// Flags seeded by the initial migration
const (
	FlagAIAssistant          = "ai_assistant"
	FlagPublicMap            = "public_map"
	FlagCitizenParticipation = "citizen_participation"
)

// Flag is a catalogue entry
type Flag struct {
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	DefaultEnabled bool      `json:"default_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Override forces a flag on or off for one tenant
type Override struct {
	TenantID  string    `json:"tenant_id"`
	FlagKey   string    `json:"flag_key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Effective is a flag as seen by one tenant
type Effective struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Overridden  bool   `json:"overridden"`
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// Repository defines the interface for flag storage
type Repository interface {
	List(ctx context.Context) ([]*Flag, error)
	Get(ctx context.Context, key string) (*Flag, error)
	Create(ctx context.Context, flag *Flag) error
	Update(ctx context.Context, flag *Flag) error
	// Delete removes the flag and its overrides
	Delete(ctx context.Context, key string) error
	ListOverrides(ctx context.Context, tenantID string) ([]*Override, error)
	SetOverride(ctx context.Context, o *Override) error
	DeleteOverride(ctx context.Context, tenantID, key string) error
}
