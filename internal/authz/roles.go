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

import "github.com/opentrusty/transparencia/internal/rbac"

// -----------------------------------------------------------------------------
// Permission Constants
// -----------------------------------------------------------------------------

const (
	PermRecordsRead          = "records:read"
	PermRecordsWrite         = "records:write"
	PermRecordsDelete        = "records:delete"
	PermUsersManage          = "users:manage"
	PermNotificationsRead    = "notifications:read"
	PermNotificationsManage  = "notifications:manage"
	PermAnalyticsRead        = "analytics:read"
	PermAuditRead            = "audit:read"
	PermFeaturesRead         = "features:read"
	PermPlatformTenants      = "platform:tenants"
	PermPlatformFeatures     = "platform:features"
	PermPlatformVersions     = "platform:versions"
	PermPlatformNotification = "platform:notifications"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// -----------------------------------------------------------------------------

// SuperadminPermissions defines permissions for the superadmin role.
var SuperadminPermissions = []string{
	"*", // Wildcard: all permissions
}

// AdminPermissions grants full control of one municipality.
var AdminPermissions = []string{
	PermRecordsRead,
	PermRecordsWrite,
	PermRecordsDelete,
	PermUsersManage,
	PermNotificationsRead,
	PermNotificationsManage,
	PermAnalyticsRead,
	PermAuditRead,
	PermFeaturesRead,
}

// FuncionarioPermissions lets staff maintain records.
var FuncionarioPermissions = []string{
	PermRecordsRead,
	PermRecordsWrite,
	PermNotificationsRead,
	PermAnalyticsRead,
	PermFeaturesRead,
}

// VisualizadorPermissions is read-only back-office access.
var VisualizadorPermissions = []string{
	PermRecordsRead,
	PermNotificationsRead,
	PermFeaturesRead,
}

var rolePermissions = map[rbac.Role][]string{
	rbac.RoleSuperadmin:   SuperadminPermissions,
	rbac.RoleAdmin:        AdminPermissions,
	rbac.RoleFuncionario:  FuncionarioPermissions,
	rbac.RoleVisualizador: VisualizadorPermissions,
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role rbac.Role) []string {
	return rolePermissions[role]
}

// HasPermission checks if role grants permission.
func HasPermission(role rbac.Role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}
