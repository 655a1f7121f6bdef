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

package rbac

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned when a role name is not one of the canonical roles.
var ErrUnknownRole = errors.New("unknown role")

// Role is the canonical role name stored on a user row.
type Role string

// Canonical role names. These values are persisted in users.role and embedded
// in bearer tokens; they must remain stable.
const (
	// RoleSuperadmin operates the platform across every municipality.
	// Scope: platform (users.tenant_id is empty)
	RoleSuperadmin Role = "superadmin"

	// RoleAdmin manages one municipality: records, users and notifications.
	// Scope: tenant
	RoleAdmin Role = "admin"

	// RoleFuncionario is municipal staff allowed to create and edit records.
	// Scope: tenant
	RoleFuncionario Role = "funcionario"

	// RoleVisualizador has read-only back-office access.
	// Scope: tenant
	RoleVisualizador Role = "visualizador"
)

// TenantRoles lists the roles that must be bound to a municipality.
var TenantRoles = []Role{RoleAdmin, RoleFuncionario, RoleVisualizador}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleFuncionario, RoleVisualizador:
		return r, nil
	}
	return "", ErrUnknownRole
}

// IsPlatform reports whether the role operates across tenants.
func (r Role) IsPlatform() bool {
	return r == RoleSuperadmin
}

func (r Role) String() string {
	return string(r)
}
