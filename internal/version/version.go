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

// Package version tracks which software release each municipality runs and
// guards rollbacks behind an explicit feasibility check.
package version

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

var (
	ErrVersionNotFound      = errors.New("version not found")
	ErrVersionExists        = errors.New("version already exists")
	ErrInvalidVersion       = errors.New("version must be semver X.Y.Z")
	ErrInvalidStatus        = errors.New("invalid version status")
	ErrSameVersion          = errors.New("tenant already runs this version")
	ErrNoStableVersion      = errors.New("no stable version published")
	ErrCheckNotFound        = errors.New("rollback check not found")
	ErrRollbackNotValidated = errors.New("rollback not validated")
	ErrVersionConflict      = errors.New("tenant version changed concurrently")
)

// Release statuses
const (
	StatusStable     = "stable"
	StatusBeta       = "beta"
	StatusDeprecated = "deprecated"
)

// History actions
const (
	ActionAssign   = "assign"
	ActionRollback = "rollback"
)

// SoftwareVersion is a published release of the portal
type SoftwareVersion struct {
	Version      string    `json:"version"`
	Status       string    `json:"status"`
	ReleaseNotes string    `json:"release_notes"`
	ReleasedAt   time.Time `json:"released_at"`
}

// History is one append-only version change of a tenant
type History struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Action      string    `json:"action"`
	ActorID     string    `json:"actor_id"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RollbackCheck is the latest rollback feasibility result of a tenant
type RollbackCheck struct {
	TenantID       string     `json:"tenant_id"`
	Feasible       bool       `json:"feasible"`
	CurrentVersion string     `json:"current_version"`
	TargetVersion  string     `json:"target_version"`
	Risks          []string   `json:"risks"`
	CheckedBy      string     `json:"checked_by"`
	CheckedAt      time.Time  `json:"checked_at"`
	ConsumedAt     *time.Time `json:"consumed_at,omitempty"`
}

// Repository defines the interface for version storage
type Repository interface {
	ListVersions(ctx context.Context) ([]*SoftwareVersion, error)
	GetVersion(ctx context.Context, version string) (*SoftwareVersion, error)
	CreateVersion(ctx context.Context, v *SoftwareVersion) error

	// ApplyChange moves h.TenantID from h.FromVersion to h.ToVersion and
	// appends h in one transaction. It fails with ErrVersionConflict when the
	// tenant no longer runs h.FromVersion. With consumeCheck set, the tenant's
	// unconsumed rollback check is consumed in the same transaction or the
	// change fails with ErrRollbackNotValidated.
	ApplyChange(ctx context.Context, h *History, consumeCheck bool) error
	// ListHistory returns newest first; an empty tenantID lists every tenant
	ListHistory(ctx context.Context, tenantID string, limit int) ([]*History, error)

	SaveRollbackCheck(ctx context.Context, c *RollbackCheck) error
	GetRollbackCheck(ctx context.Context, tenantID string) (*RollbackCheck, error)
}

// Normalize validates a "X.Y.Z" version, accepting an optional "v" prefix
func Normalize(v string) (string, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if strings.Count(v, ".") != 2 || !semver.IsValid("v"+v) || semver.Prerelease("v"+v) != "" || semver.Build("v"+v) != "" {
		return "", ErrInvalidVersion
	}
	return v, nil
}

// Compare orders two normalized versions like semver.Compare. An empty
// version sorts before every release.
func Compare(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

func majorOf(v string) string {
	return semver.Major("v" + v)
}

func validStatus(s string) bool {
	switch s {
	case StatusStable, StatusBeta, StatusDeprecated:
		return true
	}
	return false
}
