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
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantUnavailable   = errors.New("tenant unavailable")
	ErrTenantAlreadyExists = errors.New("tenant slug already exists")
	ErrInvalidSlug         = errors.New("invalid tenant slug")
	ErrNameRequired        = errors.New("tenant name is required")
	ErrInvalidPlan         = errors.New("invalid tenant plan")
	ErrInvalidTransition   = errors.New("invalid tenant status transition")
	ErrOperationBlocked    = errors.New("operation forbidden")
	ErrCacheMiss           = errors.New("tenant cache miss")
)

// Tenant is a municipality. It owns every public record, user and
// notification through tenant_id.
type Tenant struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	Plan            string    `json:"plan"`
	ContactName     string    `json:"contact_name,omitempty"`
	ContactEmail    string    `json:"contact_email,omitempty"`
	ContactPhone    string    `json:"contact_phone,omitempty"`
	SoftwareVersion string    `json:"software_version,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Status constants
const (
	StatusActive       = "active"
	StatusSuspended    = "suspended"
	StatusProvisioning = "provisioning"
)

// Plan constants
const (
	PlanBasic    = "basic"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// IsActive reports whether the tenant may serve public and admin traffic.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeSlug lowercases and trims s and checks it is a DNS label of at
// least two characters.
func NormalizeSlug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 || !slugPattern.MatchString(s) {
		return "", ErrInvalidSlug
	}
	return s, nil
}

func validPlan(plan string) bool {
	switch plan {
	case PlanBasic, PlanStandard, PlanPremium:
		return true
	}
	return false
}
