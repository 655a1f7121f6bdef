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

package records

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opentrusty/transparencia/internal/observability/logger"
)

// DefaultPublicLimit caps citizen listings and the grounding rows fetched
// per category.
const DefaultPublicLimit = 100

// PublicReader is the only path by which citizens and the assistant read
// records. It always restricts to is_public rows of a single tenant.
type PublicReader struct {
	repo    Repository
	maxRows int
}

// NewPublicReader creates a reader that returns at most maxRows per call
func NewPublicReader(repo Repository, maxRows int) *PublicReader {
	if maxRows <= 0 {
		maxRows = DefaultPublicLimit
	}
	return &PublicReader{repo: repo, maxRows: maxRows}
}

// MaxRows returns the per-call row cap
func (r *PublicReader) MaxRows() int {
	return r.maxRows
}

// ListPublic returns public rows of kind for tenantID, newest first
func (r *PublicReader) ListPublic(ctx context.Context, kind Kind, tenantID string, extra Filters, page Page) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if !IsPublicKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	rows, err := r.repo.List(ctx, kind, r.query(tenantID, extra, page, false))
	if err != nil {
		return nil, fmt.Errorf("failed to list public %s: %w", kind, err)
	}
	return r.recheck(ctx, kind, tenantID, rows), nil
}

// MapProjects returns public projects that carry coordinates
func (r *PublicReader) MapProjects(ctx context.Context, tenantID string, extra Filters, page Page) ([]*Project, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	rows, err := r.repo.List(ctx, KindProjects, r.query(tenantID, extra, page, true))
	if err != nil {
		return nil, fmt.Errorf("failed to list map projects: %w", err)
	}

	out := make([]*Project, 0, len(rows))
	for _, rec := range r.recheck(ctx, KindProjects, tenantID, rows) {
		if p, ok := rec.(*Project); ok && p.Mapped() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Stats aggregates over the public rows of tenantID
func (r *PublicReader) Stats(ctx context.Context, tenantID string, extra Filters) (*Stats, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	stats, err := r.repo.Stats(ctx, Query{TenantID: tenantID, PublicOnly: true, Filters: extra})
	if err != nil {
		return nil, fmt.Errorf("failed to compute public stats: %w", err)
	}
	return stats, nil
}

func (r *PublicReader) query(tenantID string, extra Filters, page Page, mapped bool) Query {
	return Query{
		TenantID:   tenantID,
		PublicOnly: true,
		MappedOnly: mapped,
		Filters:    extra,
		Page:       page.Clamp(r.maxRows),
	}
}

// recheck drops any row the store returned outside the public scope of
// tenantID.
func (r *PublicReader) recheck(ctx context.Context, kind Kind, tenantID string, rows []Record) []Record {
	out := rows[:0]
	for _, rec := range rows {
		base := rec.Common()
		if base.IsPublic && base.TenantID == tenantID && rec.Kind() == kind {
			out = append(out, rec)
			continue
		}
		slog.ErrorContext(ctx, "dropped record outside public scope",
			logger.Component("public_reader"),
			logger.TenantID(tenantID),
			logger.RecordKind(string(kind)),
			logger.RecordID(base.ID),
		)
	}
	return out
}
