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

package authz

import (
	"errors"

	"github.com/opentrusty/transparencia/internal/rbac"
)

// Domain errors
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrAccessDenied    = errors.New("access denied")
	ErrTenantMismatch  = errors.New("tenant does not match the authenticated user")
)

// Principal is the authenticated caller of a back-office request.
type Principal struct {
	UserID   string
	TenantID string // empty for platform roles
	Role     rbac.Role
}

// Authenticated reports whether the principal carries an identity.
func (p *Principal) Authenticated() bool {
	return p != nil && p.UserID != ""
}

// Check verifies that p holds permission.
func Check(p *Principal, permission string) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !HasPermission(p.Role, permission) {
		return ErrAccessDenied
	}
	return nil
}

// CheckTenant verifies that p may act on tenantID with permission. Platform
// roles cross tenants; every other role is pinned to its own municipality.
func CheckTenant(p *Principal, tenantID, permission string) error {
	if err := Check(p, permission); err != nil {
		return err
	}
	if p.Role.IsPlatform() {
		return nil
	}
	if p.TenantID == "" || p.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
