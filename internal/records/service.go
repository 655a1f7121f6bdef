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
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
)

// AdminPageLimit caps back-office listings
const AdminPageLimit = 500

// Service is the back-office view of records: tenant scoped, all
// visibilities.
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new records service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, auditLogger: auditLogger, now: time.Now}
}

// List returns records of kind for a tenant, public and private
func (s *Service) List(ctx context.Context, kind Kind, tenantID string, f Filters, page Page) ([]Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.List(ctx, kind, Query{
		TenantID: tenantID,
		Filters:  f,
		Page:     page.Clamp(AdminPageLimit),
	})
}

// Get returns a single record of the tenant
func (s *Service) Get(ctx context.Context, kind Kind, tenantID, recordID string) (Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.Get(ctx, kind, tenantID, recordID)
}

// Create validates rec and stores it under tenantID
func (s *Service) Create(ctx context.Context, tenantID string, rec Record, actorID string) (Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	now := s.now().UTC()
	if err := rec.Validate(now); err != nil {
		return nil, err
	}

	base := rec.Common()
	base.ID = id.NewUUIDv7()
	base.TenantID = tenantID
	base.CreatedAt = now
	base.UpdatedAt = now

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", rec.Kind(), err)
	}
	s.audit(ctx, audit.TypeRecordCreated, rec, actorID)
	return rec, nil
}

// Update replaces the record identified by recordID with rec
func (s *Service) Update(ctx context.Context, tenantID, recordID string, rec Record, actorID string) (Record, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	existing, err := s.repo.Get(ctx, rec.Kind(), tenantID, recordID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := rec.Validate(now); err != nil {
		return nil, err
	}

	base := rec.Common()
	base.ID = recordID
	base.TenantID = tenantID
	base.CreatedAt = existing.Common().CreatedAt
	base.UpdatedAt = now

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", rec.Kind(), err)
	}
	s.audit(ctx, audit.TypeRecordUpdated, rec, actorID)
	return rec, nil
}

// Delete removes a record of the tenant
func (s *Service) Delete(ctx context.Context, kind Kind, tenantID, recordID, actorID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if err := s.repo.Delete(ctx, kind, tenantID, recordID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRecordDeleted,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: string(kind),
		Metadata: map[string]any{"record_id": recordID},
	})
	return nil
}

func (s *Service) audit(ctx context.Context, eventType string, rec Record, actorID string) {
	base := rec.Common()
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: base.TenantID,
		ActorID:  actorID,
		Resource: string(rec.Kind()),
		Metadata: map[string]any{"record_id": base.ID, "is_public": base.IsPublic},
	})
}
