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

package version

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	versions map[string]*SoftwareVersion
	history  []*History
	checks   map[string]*RollbackCheck
	tenants  memTenants
	// failTenantUpdate aborts ApplyChange at the tenant update
	failTenantUpdate error
}

func newMemRepo() *memRepo {
	return &memRepo{versions: map[string]*SoftwareVersion{}, checks: map[string]*RollbackCheck{}}
}

func (m *memRepo) ListVersions(context.Context) ([]*SoftwareVersion, error) {
	out := make([]*SoftwareVersion, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, v)
	}
	return out, nil
}

func (m *memRepo) GetVersion(_ context.Context, v string) (*SoftwareVersion, error) {
	if r, ok := m.versions[v]; ok {
		return r, nil
	}
	return nil, ErrVersionNotFound
}

func (m *memRepo) CreateVersion(_ context.Context, v *SoftwareVersion) error {
	m.versions[v.Version] = v
	return nil
}

// ApplyChange stages every write and commits only when all of them succeed
func (m *memRepo) ApplyChange(_ context.Context, h *History, consumeCheck bool) error {
	var check *RollbackCheck
	if consumeCheck {
		c, ok := m.checks[h.TenantID]
		if !ok || c.ConsumedAt != nil || !c.Feasible {
			return ErrRollbackNotValidated
		}
		check = c
	}
	t, ok := m.tenants[h.TenantID]
	if !ok || t.SoftwareVersion != h.FromVersion {
		return ErrVersionConflict
	}
	if m.failTenantUpdate != nil {
		return m.failTenantUpdate
	}

	if check != nil {
		at := h.CreatedAt
		check.ConsumedAt = &at
	}
	t.SoftwareVersion = h.ToVersion
	m.history = append(m.history, h)
	return nil
}

func (m *memRepo) ListHistory(_ context.Context, tenantID string, limit int) ([]*History, error) {
	var out []*History
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if tenantID == "" || m.history[i].TenantID == tenantID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memRepo) SaveRollbackCheck(_ context.Context, c *RollbackCheck) error {
	cp := *c
	m.checks[c.TenantID] = &cp
	return nil
}

func (m *memRepo) GetRollbackCheck(_ context.Context, tenantID string) (*RollbackCheck, error) {
	c, ok := m.checks[tenantID]
	if !ok {
		return nil, ErrCheckNotFound
	}
	cp := *c
	return &cp, nil
}

type memTenants map[string]*tenant.Tenant

func (m memTenants) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	t, ok := m[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m memTenants) RefreshTenant(context.Context, string) {}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Service, *memRepo, memTenants, *clock) {
	t.Helper()
	repo := newMemRepo()
	tenants := memTenants{
		"t-renca": {ID: "t-renca", Slug: "renca", Status: tenant.StatusActive, SoftwareVersion: "1.0.0"},
		"t-maipu": {ID: "t-maipu", Slug: "maipu", Status: tenant.StatusActive},
	}
	repo.tenants = tenants
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(repo, tenants, audit.NewSlogLogger(), 30*time.Minute)
	svc.now = clk.now

	for _, in := range []CreateInput{
		{Version: "1.0.0", Status: StatusDeprecated},
		{Version: "2.0.0"},
		{Version: "v2.1.0", ReleaseNotes: "Mapa de proyectos"},
		{Version: "2.2.0", Status: StatusBeta},
	} {
		_, err := svc.Create(context.Background(), in, "root")
		require.NoError(t, err)
	}
	return svc, repo, tenants, clk
}

// TestPurpose: Validates catalogue management and semver handling.
// Scope: Unit Test
// Expected: Invalid or duplicate versions are rejected; latest stable skips beta releases.
// Test Case ID: VER-01
func TestService_Catalogue(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := setup(t)

	for _, bad := range []string{"", "2", "2.1", "2.1.0-rc1", "x.y.z", "2.1.0.4"} {
		_, err := svc.Create(ctx, CreateInput{Version: bad}, "root")
		assert.ErrorIs(t, err, ErrInvalidVersion, bad)
	}
	_, err := svc.Create(ctx, CreateInput{Version: "2.1.0"}, "root")
	assert.ErrorIs(t, err, ErrVersionExists)
	_, err = svc.Create(ctx, CreateInput{Version: "3.0.0", Status: "nightly"}, "root")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(list))
	for _, v := range list {
		got = append(got, v.Version)
	}
	assert.Equal(t, []string{"2.2.0", "2.1.0", "2.0.0", "1.0.0"}, got)

	latest, err := svc.LatestStable(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", latest.Version)
}

// TestPurpose: Validates that assigning a lower version is flagged as a downgrade.
// Scope: Unit Test
// Expected: 2.1.0 then 2.0.0 marks the second assignment as a downgrade; history is appended.
// Test Case ID: VER-02
func TestService_AssignVersion_Downgrade(t *testing.T) {
	ctx := context.Background()
	svc, repo, tenants, _ := setup(t)

	first, err := svc.AssignVersion(ctx, "t-maipu", "2.1.0", "root", "")
	require.NoError(t, err)
	assert.False(t, first.Downgrade)
	assert.Equal(t, "", first.FromVersion)

	second, err := svc.AssignVersion(ctx, "t-maipu", "2.0.0", "root", "hotfix")
	require.NoError(t, err)
	assert.True(t, second.Downgrade)
	assert.NotEmpty(t, second.Warning)
	assert.Equal(t, "2.0.0", tenants["t-maipu"].SoftwareVersion)

	_, err = svc.AssignVersion(ctx, "t-maipu", "2.0.0", "root", "")
	assert.ErrorIs(t, err, ErrSameVersion)
	_, err = svc.AssignVersion(ctx, "t-maipu", "9.9.9", "root", "")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	history, err := svc.History(ctx, "t-maipu", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2.1.0", history[0].FromVersion)
	assert.Equal(t, ActionAssign, history[0].Action)
	assert.Len(t, repo.history, 2)

	results := svc.AssignVersions(ctx, []string{"t-renca", "t-ghost"}, "2.1.0", "root", "")
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "1.0.0", results[0].FromVersion)
	assert.NotEmpty(t, results[1].Error)
}

// TestPurpose: Validates rollback feasibility checks.
// Scope: Unit Test
// Expected: Infeasible without history; feasible after an assignment, with risk notes for deprecated or major-version targets.
// Test Case ID: VER-03
func TestService_ValidateRollback(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := setup(t)

	check, err := svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	assert.False(t, check.Feasible)
	assert.NotEmpty(t, check.Risks)

	_, err = svc.AssignVersion(ctx, "t-renca", "2.1.0", "root", "")
	require.NoError(t, err)
	check, err = svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	assert.True(t, check.Feasible)
	assert.Equal(t, "2.1.0", check.CurrentVersion)
	assert.Equal(t, "1.0.0", check.TargetVersion)
	assert.Len(t, check.Risks, 2)
	assert.Equal(t, check.CheckedAt, repo.checks["t-renca"].CheckedAt)

	_, err = svc.AssignVersion(ctx, "t-maipu", "2.0.0", "root", "")
	require.NoError(t, err)
	check, err = svc.ValidateRollback(ctx, "t-maipu", "root")
	require.NoError(t, err)
	assert.False(t, check.Feasible, "first assignment has no prior version")

	delete(repo.versions, "1.0.0")
	check, err = svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	assert.False(t, check.Feasible)
}

// TestPurpose: Validates that rollback requires a fresh, feasible, unconsumed check.
// Scope: Unit Test
// Security: Rollback cannot be replayed or applied from a stale check
// Expected: ErrRollbackNotValidated unless the check is usable; a performed rollback consumes it.
// Test Case ID: VER-04
func TestService_Rollback(t *testing.T) {
	ctx := context.Background()
	svc, repo, tenants, clk := setup(t)

	_, err := svc.Rollback(ctx, "t-renca", "root", "")
	assert.ErrorIs(t, err, ErrRollbackNotValidated)

	_, err = svc.AssignVersion(ctx, "t-renca", "2.0.0", "root", "")
	require.NoError(t, err)
	_, err = svc.AssignVersion(ctx, "t-renca", "2.1.0", "root", "")
	require.NoError(t, err)

	_, err = svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	clk.t = clk.t.Add(31 * time.Minute)
	_, err = svc.Rollback(ctx, "t-renca", "root", "")
	assert.ErrorIs(t, err, ErrRollbackNotValidated, "expired check")

	_, err = svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	tenants["t-renca"].SoftwareVersion = "2.2.0"
	_, err = svc.Rollback(ctx, "t-renca", "root", "")
	assert.ErrorIs(t, err, ErrRollbackNotValidated, "version changed since check")
	tenants["t-renca"].SoftwareVersion = "2.1.0"

	h, err := svc.Rollback(ctx, "t-renca", "root", "regresión en mapa")
	require.NoError(t, err)
	assert.Equal(t, ActionRollback, h.Action)
	assert.Equal(t, "2.0.0", h.ToVersion)
	assert.Equal(t, "2.0.0", tenants["t-renca"].SoftwareVersion)
	assert.NotNil(t, repo.checks["t-renca"].ConsumedAt)

	_, err = svc.Rollback(ctx, "t-renca", "root", "")
	assert.ErrorIs(t, err, ErrRollbackNotValidated, "check already consumed")

	all, err := svc.History(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ActionRollback, all[0].Action)
}

// TestPurpose: Validates that a version change is all or nothing.
// Scope: Unit Test
// Expected: When the tenant update fails, neither a history row nor a consumed check remains and the tenant keeps its version; a change from a stale version is refused as a conflict.
// Test Case ID: VER-05
func TestService_Rollback_Atomic(t *testing.T) {
	ctx := context.Background()
	svc, repo, tenants, _ := setup(t)

	_, err := svc.AssignVersion(ctx, "t-renca", "2.0.0", "root", "")
	require.NoError(t, err)
	_, err = svc.ValidateRollback(ctx, "t-renca", "root")
	require.NoError(t, err)
	require.Len(t, repo.history, 1)

	repo.failTenantUpdate = errors.New("connection reset")
	_, err = svc.Rollback(ctx, "t-renca", "root", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRollbackNotValidated)
	assert.Len(t, repo.history, 1)
	assert.Nil(t, repo.checks["t-renca"].ConsumedAt)
	assert.Equal(t, "2.0.0", tenants["t-renca"].SoftwareVersion)

	_, err = svc.AssignVersion(ctx, "t-renca", "2.1.0", "root", "")
	require.Error(t, err)
	assert.Len(t, repo.history, 1)

	repo.failTenantUpdate = nil
	h, err := svc.Rollback(ctx, "t-renca", "root", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", h.ToVersion)
	assert.NotNil(t, repo.checks["t-renca"].ConsumedAt)

	stale := &tenant.Tenant{ID: "t-renca", SoftwareVersion: "2.0.0"}
	_, err = svc.apply(ctx, stale, "2.1.0", ActionAssign, "root", "", false)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Len(t, repo.history, 2)
}
