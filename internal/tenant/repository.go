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

package tenant

import (
	"context"
)

// ListFilter narrows a tenant listing; an empty Status lists every tenant
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Repository defines the interface for tenant storage
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	List(ctx context.Context, filter ListFilter) ([]*Tenant, error)
}

// Cache holds resolved tenants keyed by slug. Get returns ErrCacheMiss when
// the slug is not cached.
type Cache interface {
	Get(ctx context.Context, slug string) (*Tenant, error)
	Set(ctx context.Context, tenant *Tenant) error
	Invalidate(ctx context.Context, slug string) error
}
