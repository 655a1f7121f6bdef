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

package authz_test

import (
	"testing"

	"github.com/opentrusty/transparencia/internal/authz"
	"github.com/opentrusty/transparencia/internal/rbac"
	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates the back-office permission matrix for every role.
// Scope: Unit Test
// Security: Least privilege per municipal role
// Expected: Visualizador reads only, funcionario writes records, admin deletes and manages users, superadmin has everything.
// Test Case ID: AUZ-01
func TestHasPermission_Matrix(t *testing.T) {
	tests := []struct {
		role rbac.Role
		perm string
		want bool
	}{
		{rbac.RoleVisualizador, authz.PermRecordsRead, true},
		{rbac.RoleVisualizador, authz.PermRecordsWrite, false},
		{rbac.RoleVisualizador, authz.PermAnalyticsRead, false},
		{rbac.RoleFuncionario, authz.PermRecordsWrite, true},
		{rbac.RoleFuncionario, authz.PermRecordsDelete, false},
		{rbac.RoleFuncionario, authz.PermUsersManage, false},
		{rbac.RoleAdmin, authz.PermRecordsDelete, true},
		{rbac.RoleAdmin, authz.PermUsersManage, true},
		{rbac.RoleAdmin, authz.PermAuditRead, true},
		{rbac.RoleAdmin, authz.PermPlatformTenants, false},
		{rbac.RoleSuperadmin, authz.PermPlatformTenants, true},
		{rbac.RoleSuperadmin, authz.PermRecordsDelete, true},
		{rbac.Role("ghost"), authz.PermRecordsRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.want, authz.HasPermission(tt.role, tt.perm))
		})
	}
}

// TestPurpose: Validates that tenant-scoped roles cannot act on another municipality while superadmin can.
// Scope: Unit Test
// Security: Cross-tenant isolation of back-office access
// Expected: ErrTenantMismatch for a foreign tenant, nil for own tenant and for superadmin.
// Test Case ID: AUZ-02
func TestCheckTenant(t *testing.T) {
	admin := &authz.Principal{UserID: "u1", TenantID: "renca", Role: rbac.RoleAdmin}
	super := &authz.Principal{UserID: "u2", Role: rbac.RoleSuperadmin}

	assert.NoError(t, authz.CheckTenant(admin, "renca", authz.PermRecordsWrite))
	assert.ErrorIs(t, authz.CheckTenant(admin, "maipu", authz.PermRecordsWrite), authz.ErrTenantMismatch)
	assert.NoError(t, authz.CheckTenant(super, "maipu", authz.PermRecordsDelete))
}

// TestPurpose: Validates that anonymous callers and insufficient roles are rejected with distinct errors.
// Scope: Unit Test
// Expected: ErrUnauthenticated for nil or empty principal, ErrAccessDenied for missing permission.
// Test Case ID: AUZ-03
func TestCheck_Errors(t *testing.T) {
	assert.ErrorIs(t, authz.Check(nil, authz.PermRecordsRead), authz.ErrUnauthenticated)
	assert.ErrorIs(t, authz.Check(&authz.Principal{}, authz.PermRecordsRead), authz.ErrUnauthenticated)

	viewer := &authz.Principal{UserID: "u", TenantID: "t", Role: rbac.RoleVisualizador}
	assert.ErrorIs(t, authz.Check(viewer, authz.PermRecordsDelete), authz.ErrAccessDenied)
}
