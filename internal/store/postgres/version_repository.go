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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/transparencia/internal/version"
)

// VersionRepository implements version.Repository
type VersionRepository struct {
	db *DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// ListVersions returns the whole catalogue
func (r *VersionRepository) ListVersions(ctx context.Context) ([]*version.SoftwareVersion, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT version, status, release_notes, released_at FROM software_versions
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []*version.SoftwareVersion
	for rows.Next() {
		var v version.SoftwareVersion
		if err := rows.Scan(&v.Version, &v.Status, &v.ReleaseNotes, &v.ReleasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// GetVersion retrieves one release
func (r *VersionRepository) GetVersion(ctx context.Context, v string) (*version.SoftwareVersion, error) {
	var out version.SoftwareVersion
	err := r.db.pool.QueryRow(ctx, `
		SELECT version, status, release_notes, released_at FROM software_versions WHERE version = $1
	`, v).Scan(&out.Version, &out.Status, &out.ReleaseNotes, &out.ReleasedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, version.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &out, nil
}

// CreateVersion inserts a release
func (r *VersionRepository) CreateVersion(ctx context.Context, v *version.SoftwareVersion) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO software_versions (version, status, release_notes, released_at)
		VALUES ($1, $2, $3, $4)
	`, v.Version, v.Status, v.ReleaseNotes, v.ReleasedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return version.ErrVersionExists
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// ApplyChange updates the tenant's version, appends the history row and
// optionally consumes the rollback check in one transaction
func (r *VersionRepository) ApplyChange(ctx context.Context, h *version.History, consumeCheck bool) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if consumeCheck {
		result, err := tx.Exec(ctx, `
			UPDATE rollback_checks SET consumed_at = $2
			WHERE tenant_id = $1 AND consumed_at IS NULL AND feasible
		`, h.TenantID, h.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to consume rollback check: %w", err)
		}
		if result.RowsAffected() == 0 {
			return version.ErrRollbackNotValidated
		}
	}

	result, err := tx.Exec(ctx, `
		UPDATE tenants SET software_version = $2, updated_at = $3
		WHERE id = $1 AND software_version = $4
	`, h.TenantID, h.ToVersion, h.CreatedAt, h.FromVersion)
	if err != nil {
		return fmt.Errorf("failed to update tenant version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return version.ErrVersionConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO version_history (id, tenant_id, from_version, to_version, action, actor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, h.ID, h.TenantID, h.FromVersion, h.ToVersion, h.Action, h.ActorID, h.Notes, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit version change: %w", err)
	}
	return nil
}

// ListHistory returns history newest first; an empty tenantID lists all tenants
func (r *VersionRepository) ListHistory(ctx context.Context, tenantID string, limit int) ([]*version.History, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, from_version, to_version, action, actor_id, notes, created_at
		FROM version_history
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list version history: %w", err)
	}
	defer rows.Close()

	var out []*version.History
	for rows.Next() {
		var h version.History
		if err := rows.Scan(&h.ID, &h.TenantID, &h.FromVersion, &h.ToVersion, &h.Action, &h.ActorID, &h.Notes, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version history: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// SaveRollbackCheck replaces the tenant's rollback check
func (r *VersionRepository) SaveRollbackCheck(ctx context.Context, c *version.RollbackCheck) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO rollback_checks (
			tenant_id, feasible, current_version, target_version, risks, checked_by, checked_at, consumed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (tenant_id) DO UPDATE SET
			feasible = EXCLUDED.feasible,
			current_version = EXCLUDED.current_version,
			target_version = EXCLUDED.target_version,
			risks = EXCLUDED.risks,
			checked_by = EXCLUDED.checked_by,
			checked_at = EXCLUDED.checked_at,
			consumed_at = NULL
	`, c.TenantID, c.Feasible, c.CurrentVersion, c.TargetVersion, c.Risks, c.CheckedBy, c.CheckedAt)
	if err != nil {
		return fmt.Errorf("failed to save rollback check: %w", err)
	}
	return nil
}

// GetRollbackCheck retrieves the tenant's latest rollback check
func (r *VersionRepository) GetRollbackCheck(ctx context.Context, tenantID string) (*version.RollbackCheck, error) {
	var c version.RollbackCheck
	err := r.db.pool.QueryRow(ctx, `
		SELECT tenant_id, feasible, current_version, target_version, risks, checked_by, checked_at, consumed_at
		FROM rollback_checks
		WHERE tenant_id = $1
	`, tenantID).Scan(&c.TenantID, &c.Feasible, &c.CurrentVersion, &c.TargetVersion, &c.Risks, &c.CheckedBy, &c.CheckedAt, &c.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, version.ErrCheckNotFound
		}
		return nil, fmt.Errorf("failed to get rollback check: %w", err)
	}
	return &c, nil
}
