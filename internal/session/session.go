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

// Package session issues and validates the bearer tokens used by the
// back-office and platform consoles.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/rbac"
)

// Domain errors
var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")
)

// Claims extends jwt.RegisteredClaims with the caller's tenant and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string    `json:"user_id"`
	TenantID string    `json:"tenant_id,omitempty"`
	Role     rbac.Role `json:"role"`
}

// Session is the validated view of a token
type Session struct {
	ID        string
	UserID    string
	TenantID  string
	Role      rbac.Role
	ExpiresAt time.Time
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager
func NewManager(secret, issuer string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue creates a signed token for a user.
func (m *Manager) Issue(userID, tenantID string, role rbac.Role) (string, *Session, error) {
	now := m.now().UTC()
	sess := &Session{
		ID:        id.NewUUIDv7(),
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			ID:        sess.ID,
		},
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, sess, nil
}

// Validate parses a token and returns its session.
func (m *Manager) Validate(tokenString string) (*Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	role, err := rbac.ParseRole(string(claims.Role))
	if err != nil || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrSessionInvalid
	}
	if role.IsPlatform() != (claims.TenantID == "") {
		return nil, ErrSessionInvalid
	}

	return &Session{
		ID:        claims.ID,
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
