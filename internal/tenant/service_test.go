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
	"errors"
	"sync"
	"testing"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu      sync.Mutex
	tenants map[string]*Tenant
	lookups int
}

func newMemRepo() *memRepo {
	return &memRepo{tenants: map[string]*Tenant{}}
}

func (m *memRepo) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) GetBySlug(_ context.Context, slug string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	for _, t := range m.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (m *memRepo) Update(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Tenant
	for _, t := range m.tenants {
		if f.Status == "" || t.Status == f.Status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memCache struct {
	entries     map[string]*Tenant
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*Tenant{}}
}

func (c *memCache) Get(_ context.Context, slug string) (*Tenant, error) {
	t, ok := c.entries[slug]
	if !ok {
		return nil, ErrCacheMiss
	}
	return t, nil
}

func (c *memCache) Set(_ context.Context, t *Tenant) error {
	c.entries[t.Slug] = t
	return nil
}

func (c *memCache) Invalidate(_ context.Context, slug string) error {
	delete(c.entries, slug)
	c.invalidated = append(c.invalidated, slug)
	return nil
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) CreateUser(ctx context.Context, in identity.CreateUserInput, actorID string) (*identity.User, error) {
	args := m.Called(ctx, in, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// TestPurpose: Validates tenant provisioning with and without an initial administrator.
// Scope: Unit Test
// Expected: Tenant ends active with a normalized slug; a failing admin creation leaves it in provisioning.
// Test Case ID: TEN-01
func TestService_CreateTenant(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	users := new(mockProvisioner)
	svc := NewService(repo, users, nil, audit.NewSlogLogger())

	users.On("CreateUser", mock.Anything, mock.MatchedBy(func(in identity.CreateUserInput) bool {
		return in.Email == "admin@renca.cl" && in.Role == "admin" && in.TenantID != ""
	}), "root").Return(&identity.User{ID: "u-1"}, nil).Once()

	created, err := svc.CreateTenant(ctx, CreateInput{
		Slug:  " Renca ",
		Name:  "Municipalidad de Renca",
		Admin: &AdminInput{Email: "admin@renca.cl", FullName: "Admin", Password: "Password123"},
	}, "root")
	require.NoError(t, err)
	assert.Equal(t, "renca", created.Slug)
	assert.Equal(t, StatusActive, created.Status)
	assert.Equal(t, PlanBasic, created.Plan)

	_, err = svc.CreateTenant(ctx, CreateInput{Slug: "renca", Name: "Otra"}, "root")
	assert.ErrorIs(t, err, ErrTenantAlreadyExists)

	users.On("CreateUser", mock.Anything, mock.Anything, "root").Return(nil, identity.ErrWeakPassword).Once()
	stuck, err := svc.CreateTenant(ctx, CreateInput{
		Slug:  "maipu",
		Name:  "Maipú",
		Admin: &AdminInput{Email: "admin@maipu.cl", FullName: "Admin", Password: "x"},
	}, "root")
	assert.ErrorIs(t, err, identity.ErrWeakPassword)
	require.NotNil(t, stuck)
	stored, err := repo.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProvisioning, stored.Status)

	users.AssertExpectations(t)
}

// TestPurpose: Validates input checks on tenant creation.
// Scope: Unit Test
// Expected: Invalid slugs, missing names and unknown plans are rejected.
// Test Case ID: TEN-02
func TestService_CreateTenant_Validation(t *testing.T) {
	svc := NewService(newMemRepo(), new(mockProvisioner), nil, audit.NewSlogLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"single char", CreateInput{Slug: "a", Name: "A"}, ErrInvalidSlug},
		{"leading hyphen", CreateInput{Slug: "-renca", Name: "A"}, ErrInvalidSlug},
		{"dots", CreateInput{Slug: "renca.cl", Name: "A"}, ErrInvalidSlug},
		{"no name", CreateInput{Slug: "renca", Name: "  "}, ErrNameRequired},
		{"bad plan", CreateInput{Slug: "renca", Name: "Renca", Plan: "gold"}, ErrInvalidPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTenant(ctx, tt.in, "root")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestPurpose: Validates suspension and reactivation, including cache invalidation.
// Scope: Unit Test
// Expected: Status toggles, repeated transitions are rejected, cache entry for the slug is dropped each time.
// Test Case ID: TEN-03
func TestService_SuspendReactivate(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	cache := newMemCache()
	svc := NewService(repo, new(mockProvisioner), cache, audit.NewSlogLogger())

	created, err := svc.CreateTenant(ctx, CreateInput{Slug: "renca", Name: "Renca"}, "root")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, created))

	suspended, err := svc.SuspendTenant(ctx, created.ID, "root", "unpaid")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, suspended.Status)
	_, err = cache.Get(ctx, "renca")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = svc.SuspendTenant(ctx, created.ID, "root", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	active, err := svc.ReactivateTenant(ctx, created.ID, "root")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, active.Status)
	assert.Equal(t, []string{"renca", "renca"}, cache.invalidated)

	name := "Municipalidad de Renca"
	updated, err := svc.UpdateTenant(ctx, created.ID, UpdateInput{Name: &name}, "root")
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Len(t, cache.invalidated, 3)
}

// TestPurpose: Validates that tenant deletion is always refused and audited.
// Scope: Unit Test
// Security: Irreversible data loss prevention
// Expected: ErrOperationBlocked for every caller, a blocked tenant_delete_blocked audit event each time, tenant still present.
// Test Case ID: TEN-04
func TestService_DeleteTenant_Blocked(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	auditLog := new(mockAudit)
	auditLog.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantCreated
	})).Return()
	auditLog.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantDeleteBlock && e.Result == audit.ResultBlocked
	})).Return().Twice()

	svc := NewService(repo, new(mockProvisioner), nil, auditLog)
	created, err := svc.CreateTenant(ctx, CreateInput{Slug: "renca", Name: "Renca"}, "root")
	require.NoError(t, err)

	err = svc.DeleteTenant(ctx, created.ID, "root", "10.0.0.1", "curl")
	assert.ErrorIs(t, err, ErrOperationBlocked)
	err = svc.DeleteTenant(ctx, created.ID, "", "10.0.0.2", "")
	assert.ErrorIs(t, err, ErrOperationBlocked)

	_, err = repo.GetByID(ctx, created.ID)
	assert.NoError(t, err)
	auditLog.AssertExpectations(t)
}

var errBoom = errors.New("boom")

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*Tenant, error) { return nil, errBoom }
func (failingCache) Set(context.Context, *Tenant) error           { return errBoom }
func (failingCache) Invalidate(context.Context, string) error     { return errBoom }
