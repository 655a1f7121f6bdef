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

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/transparencia/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates that an issued token validates back to the same principal.
// Scope: Unit Test
// Expected: User, tenant and role survive the round trip.
// Test Case ID: SES-01
func TestManager_IssueValidate(t *testing.T) {
	m := NewManager(testSecret, "transparencia", time.Hour)

	token, issued, err := m.Issue("u-1", "t-renca", rbac.RoleFuncionario)
	require.NoError(t, err)

	sess, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, sess.ID)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, "t-renca", sess.TenantID)
	assert.Equal(t, rbac.RoleFuncionario, sess.Role)
}

// TestPurpose: Validates rejection of expired tokens and tokens signed with another key.
// Scope: Unit Test
// Security: Token forgery and replay after expiry
// Expected: ErrSessionExpired after TTL, ErrSessionInvalid for foreign signatures.
// Test Case ID: SES-02
func TestManager_Rejects(t *testing.T) {
	m := NewManager(testSecret, "transparencia", time.Minute)
	token, _, err := m.Issue("u-1", "t-1", rbac.RoleAdmin)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	other := NewManager("ffffffffffffffffffffffffffffffff", "transparencia", time.Minute)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = NewManager(testSecret, "someone-else", time.Minute).Validate(token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

// TestPurpose: Validates that a token claiming platform scope with a tenant, or tenant scope without one, is rejected.
// Scope: Unit Test
// Security: Privilege escalation via crafted claims
// Expected: ErrSessionInvalid for inconsistent role and tenant claims.
// Test Case ID: SES-03
func TestManager_RejectsInconsistentScope(t *testing.T) {
	m := NewManager(testSecret, "transparencia", time.Hour)

	craft := func(tenantID string, role rbac.Role) string {
		now := time.Now()
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-1",
				Issuer:    "transparencia",
				Audience:  jwt.ClaimStrings{"transparencia"},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			UserID:   "u-1",
			TenantID: tenantID,
			Role:     role,
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}

	_, err := m.Validate(craft("t-1", rbac.RoleSuperadmin))
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = m.Validate(craft("", rbac.RoleAdmin))
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = m.Validate(craft("t-1", rbac.Role("root")))
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
