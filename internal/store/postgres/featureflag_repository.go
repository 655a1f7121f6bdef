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
	"github.com/opentrusty/transparencia/internal/featureflag"
)

// FeatureFlagRepository implements featureflag.Repository
type FeatureFlagRepository struct {
	db *DB
}

// NewFeatureFlagRepository creates a new feature flag repository
func NewFeatureFlagRepository(db *DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{db: db}
}

// List returns the catalogue ordered by key
func (r *FeatureFlagRepository) List(ctx context.Context) ([]*featureflag.Flag, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT key, name, description, default_enabled, created_at, updated_at
		FROM feature_flags
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature flags: %w", err)
	}
	defer rows.Close()

	var flags []*featureflag.Flag
	for rows.Next() {
		var f featureflag.Flag
		if err := rows.Scan(&f.Key, &f.Name, &f.Description, &f.DefaultEnabled, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature flag: %w", err)
		}
		flags = append(flags, &f)
	}
	return flags, rows.Err()
}

// Get retrieves a flag by key
func (r *FeatureFlagRepository) Get(ctx context.Context, key string) (*featureflag.Flag, error) {
	var f featureflag.Flag
	err := r.db.pool.QueryRow(ctx, `
		SELECT key, name, description, default_enabled, created_at, updated_at
		FROM feature_flags
		WHERE key = $1
	`, key).Scan(&f.Key, &f.Name, &f.Description, &f.DefaultEnabled, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, featureflag.ErrFlagNotFound
		}
		return nil, fmt.Errorf("failed to get feature flag: %w", err)
	}
	return &f, nil
}

// Create inserts a flag
func (r *FeatureFlagRepository) Create(ctx context.Context, f *featureflag.Flag) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO feature_flags (key, name, description, default_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.Key, f.Name, f.Description, f.DefaultEnabled, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return featureflag.ErrFlagExists
		}
		return fmt.Errorf("failed to insert feature flag: %w", err)
	}
	return nil
}

// Update stores catalogue fields
func (r *FeatureFlagRepository) Update(ctx context.Context, f *featureflag.Flag) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE feature_flags
		SET name = $2, description = $3, default_enabled = $4, updated_at = $5
		WHERE key = $1
	`, f.Key, f.Name, f.Description, f.DefaultEnabled, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update feature flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return featureflag.ErrFlagNotFound
	}
	return nil
}

// Delete removes a flag; overrides go with it through the foreign key
func (r *FeatureFlagRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM feature_flags WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete feature flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return featureflag.ErrFlagNotFound
	}
	return nil
}

// ListOverrides returns the overrides of tenantID
func (r *FeatureFlagRepository) ListOverrides(ctx context.Context, tenantID string) ([]*featureflag.Override, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT tenant_id, flag_key, enabled, updated_at
		FROM feature_flag_overrides
		WHERE tenant_id = $1
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var out []*featureflag.Override
	for rows.Next() {
		var o featureflag.Override
		if err := rows.Scan(&o.TenantID, &o.FlagKey, &o.Enabled, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SetOverride upserts the override of one tenant and flag
func (r *FeatureFlagRepository) SetOverride(ctx context.Context, o *featureflag.Override) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO feature_flag_overrides (tenant_id, flag_key, enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, flag_key) DO UPDATE
		SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`, o.TenantID, o.FlagKey, o.Enabled, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override of one tenant and flag
func (r *FeatureFlagRepository) DeleteOverride(ctx context.Context, tenantID, key string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM feature_flag_overrides WHERE tenant_id = $1 AND flag_key = $2
	`, tenantID, key)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return featureflag.ErrOverrideNotFound
	}
	return nil
}
