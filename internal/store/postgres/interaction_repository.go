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
	"fmt"
	"time"

	"github.com/opentrusty/transparencia/internal/interaction"
)

// InteractionRepository implements interaction.Repository
type InteractionRepository struct {
	db *DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Insert appends one interaction row
func (r *InteractionRepository) Insert(ctx context.Context, in *interaction.Interaction) error {
	filters := in.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO chatbot_interactions (
			id, tenant_id, question, answer, intent, category, has_data, filters, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		in.ID, in.TenantID, in.Question, in.Answer, in.Intent, in.Category,
		in.HasData, filters, in.LatencyMS, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// Summarize aggregates tenantID's interactions since since. Multi-category
// questions count once per category.
func (r *InteractionRepository) Summarize(ctx context.Context, tenantID string, since time.Time, recent int) (*interaction.Summary, error) {
	summary := &interaction.Summary{ByCategory: []interaction.CategoryCount{}, Recent: []*interaction.Interaction{}}

	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE NOT has_data),
			COALESCE(AVG(latency_ms), 0)::float8
		FROM chatbot_interactions
		WHERE tenant_id = $1 AND created_at >= $2
	`, tenantID, since).Scan(&summary.Total, &summary.NoData, &summary.AvgLatencyMS)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize interactions: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT cat, COUNT(*)
		FROM chatbot_interactions,
			LATERAL unnest(string_to_array(NULLIF(category, ''), ',')) AS cat
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY cat
		ORDER BY COUNT(*) DESC, cat
	`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	for rows.Next() {
		var c interaction.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.pool.Query(ctx, `
		SELECT id, tenant_id, question, answer, intent, category, has_data, filters, latency_ms, created_at
		FROM chatbot_interactions
		WHERE tenant_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, since, recent)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent interactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var in interaction.Interaction
		if err := rows.Scan(
			&in.ID, &in.TenantID, &in.Question, &in.Answer, &in.Intent, &in.Category,
			&in.HasData, &in.Filters, &in.LatencyMS, &in.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		summary.Recent = append(summary.Recent, &in)
	}
	return summary, rows.Err()
}
