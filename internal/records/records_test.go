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
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository that honors Query semantics.
type memRepo struct {
	mu   sync.Mutex
	rows []Record
	// leak ignores PublicOnly and tenant scope to exercise the reader's recheck
	leak bool
}

func attrs(rec Record) (year int, department, category, comuna, status string) {
	switch r := rec.(type) {
	case *Budget:
		return r.Year, r.Department, r.Category, r.Comuna, ""
	case *Expenditure:
		return r.Year, r.Department, r.Category, r.Comuna, ""
	case *Project:
		return r.StartDate.Year(), r.Department, r.Category, r.Comuna, r.Status
	case *Contract:
		return r.Year(), r.Department, r.Category, r.Comuna, r.Status
	case *Supplier:
		return 0, "", r.Category, "", ""
	}
	return 0, "", "", "", ""
}

func matches(rec Record, q Query) bool {
	base := rec.Common()
	if base.TenantID != q.TenantID {
		return false
	}
	if q.PublicOnly && !base.IsPublic {
		return false
	}
	if q.MappedOnly {
		p, ok := rec.(*Project)
		if !ok || !p.Mapped() {
			return false
		}
	}
	year, dept, cat, comuna, status := attrs(rec)
	f := q.Filters
	if f.Year != 0 && year != f.Year {
		return false
	}
	for _, c := range [][2]string{{f.Department, dept}, {f.Category, cat}, {f.Comuna, comuna}} {
		if c[0] != "" && !strings.EqualFold(c[0], c[1]) {
			return false
		}
	}
	if f.Status != "" && status != "" && status != f.Status {
		return false
	}
	return true
}

func (m *memRepo) List(_ context.Context, kind Kind, q Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.rows {
		if r.Kind() != kind {
			continue
		}
		if m.leak || matches(r, q) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Common().CreatedAt.After(out[j].Common().CreatedAt)
	})
	if q.Page.Limit > 0 && len(out) > q.Page.Limit {
		out = out[:q.Page.Limit]
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, kind Kind, tenantID, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Kind() == kind && r.Common().TenantID == tenantID && r.Common().ID == id {
			return r, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memRepo) Create(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

func (m *memRepo) Update(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.Kind() == rec.Kind() && r.Common().ID == rec.Common().ID {
			m.rows[i] = rec
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memRepo) Delete(_ context.Context, kind Kind, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.Kind() == kind && r.Common().TenantID == tenantID && r.Common().ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memRepo) Stats(ctx context.Context, q Query) (*Stats, error) {
	var s Stats
	for _, kind := range PublicKinds {
		rows, _ := m.List(ctx, kind, q)
		for _, r := range rows {
			switch v := r.(type) {
			case *Budget:
				s.PlannedBudget += v.PlannedAmount
				s.ExecutedBudget += v.ExecutedAmount
			case *Expenditure:
				s.TotalExpenditure += v.Amount
			case *Project:
				s.ProjectCount++
				if v.Status == ProjectInProgress {
					s.ActiveProjects++
				}
			case *Contract:
				s.ContractCount++
				if v.Status == ContractActive {
					s.ActiveContracts++
				}
			}
		}
	}
	return &s, nil
}

func budget(id, tenantID string, public bool, year int, planned int64) *Budget {
	return &Budget{
		Base:          Base{ID: id, TenantID: tenantID, IsPublic: public, CreatedAt: time.Now()},
		Year:          year,
		Department:    "Obras",
		Category:      "Infraestructura",
		PlannedAmount: planned,
	}
}

func ptr[T any](v T) *T { return &v }

// TestPurpose: Validates the renca 2024 scenario: only the public budget is visible to citizens.
// Scope: Unit Test
// Security: Public visibility invariant
// Expected: ListPublic returns the 150,000,000 record and never the private 999,000,000 record.
// Test Case ID: REC-01
func TestPublicReader_OnlyPublicRows(t *testing.T) {
	repo := &memRepo{rows: []Record{
		budget("b-1", "renca", true, 2024, 150_000_000),
		budget("b-2", "renca", false, 2024, 999_000_000),
	}}
	reader := NewPublicReader(repo, 100)

	rows, err := reader.ListPublic(context.Background(), KindBudgets, "renca", Filters{Year: 2024}, Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(150_000_000), rows[0].(*Budget).PlannedAmount)

	stats, err := reader.Stats(context.Background(), "renca", Filters{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, int64(150_000_000), stats.PlannedBudget)
}

// TestPurpose: Validates tenant isolation and the post-query recheck against a misbehaving store.
// Scope: Unit Test
// Security: Cross-tenant leakage and private rows leaking through store bugs
// Expected: Rows from other tenants and private rows are dropped even if the store returns them.
// Test Case ID: REC-02
func TestPublicReader_RecheckDropsLeakedRows(t *testing.T) {
	repo := &memRepo{leak: true, rows: []Record{
		budget("a-1", "tenant-a", true, 2024, 1),
		budget("a-2", "tenant-a", false, 2024, 2),
		budget("b-1", "tenant-b", true, 2024, 3),
	}}
	reader := NewPublicReader(repo, 100)

	rows, err := reader.ListPublic(context.Background(), KindBudgets, "tenant-a", Filters{}, Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a-1", rows[0].Common().ID)
	for _, r := range rows {
		assert.Equal(t, "tenant-a", r.Common().TenantID)
		assert.True(t, r.Common().IsPublic)
	}
}

// TestPurpose: Validates the reader's argument checks, row cap and map projection.
// Scope: Unit Test
// Expected: Missing tenant and supplier kind are refused; limit never exceeds the cap; map returns only public projects with coordinates.
// Test Case ID: REC-03
func TestPublicReader_Bounds(t *testing.T) {
	repo := &memRepo{}
	for i := 0; i < 5; i++ {
		repo.rows = append(repo.rows, budget("b", "t", true, 2024, int64(i)))
	}
	repo.rows = append(repo.rows,
		&Project{Base: Base{ID: "p-1", TenantID: "t", IsPublic: true}, Name: "Plaza", Status: ProjectInProgress, Latitude: ptr(-33.4), Longitude: ptr(-70.7)},
		&Project{Base: Base{ID: "p-2", TenantID: "t", IsPublic: true}, Name: "Sede", Status: ProjectPlanned},
		&Project{Base: Base{ID: "p-3", TenantID: "t", IsPublic: false}, Name: "Oculto", Status: ProjectPlanned, Latitude: ptr(-33.0), Longitude: ptr(-70.0)},
	)
	reader := NewPublicReader(repo, 3)
	ctx := context.Background()

	_, err := reader.ListPublic(ctx, KindBudgets, "", Filters{}, Page{})
	assert.ErrorIs(t, err, ErrTenantRequired)
	_, err = reader.ListPublic(ctx, KindSuppliers, "t", Filters{}, Page{})
	assert.ErrorIs(t, err, ErrUnknownKind)

	rows, err := reader.ListPublic(ctx, KindBudgets, "t", Filters{}, Page{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	mapped, err := reader.MapProjects(ctx, "t", Filters{}, Page{})
	require.NoError(t, err)
	require.Len(t, mapped, 1)
	assert.Equal(t, "p-1", mapped[0].ID)
}

// TestPurpose: Validates the filter allowlist for model output and query strings.
// Scope: Unit Test
// Security: Caller-supplied keys cannot widen visibility or tenant scope
// Expected: Only year, department, category, comuna and status survive; malformed years are dropped.
// Test Case ID: REC-04
func TestFiltersFromMap_Allowlist(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"year": 2024,
		"Department": " Obras ",
		"status": "EN_PROGRESO",
		"is_public": false,
		"tenant_id": "other",
		"isPublic": false
	}`), &raw))

	f := FiltersFromMap(raw)
	assert.Equal(t, Filters{Year: 2024, Department: "Obras", Status: "en_progreso"}, f)
	assert.Equal(t, map[string]any{"year": 2024, "department": "Obras", "status": "en_progreso"}, f.Map())

	assert.Zero(t, FiltersFromMap(map[string]any{"year": 2024.5}).Year)
	assert.Zero(t, FiltersFromMap(map[string]any{"year": "dos mil"}).Year)
	assert.Zero(t, FiltersFromMap(map[string]any{"year": []any{2024}}).Year)

	q := FiltersFromQuery(url.Values{"year": {"2023"}, "comuna": {"Renca"}, "tenant_id": {"x"}})
	assert.Equal(t, Filters{Year: 2023, Comuna: "Renca"}, q)
	assert.True(t, Filters{}.IsZero())
}

// TestPurpose: Validates record validation rules.
// Scope: Unit Test
// Expected: Out-of-range years, negative amounts, unknown statuses, bad coordinates and inverted periods are rejected with the field name.
// Test Case ID: REC-05
func TestRecord_Validate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	start := NewDate(2024, 1, 10)
	before := NewDate(2023, 12, 31)

	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"budget year too old", &Budget{Year: 1999, Department: "d", Category: "c"}, "year"},
		{"budget year too far", &Budget{Year: 2031, Department: "d", Category: "c"}, "year"},
		{"budget negative", &Budget{Year: 2024, Department: "d", Category: "c", PlannedAmount: -1}, "planned_amount"},
		{"budget missing department", &Budget{Year: 2024, Category: "c"}, "department"},
		{"expenditure no date", &Expenditure{Department: "d", Category: "c", Description: "x"}, "date"},
		{"expenditure year mismatch", &Expenditure{Year: 2023, Date: start, Department: "d", Category: "c", Description: "x"}, "year"},
		{"project bad status", &Project{Name: "n", Department: "d", Status: "done", StartDate: start}, "status"},
		{"project bad latitude", &Project{Name: "n", Department: "d", Status: ProjectPlanned, StartDate: start, Latitude: ptr(91.0), Longitude: ptr(0.0)}, "latitude"},
		{"project half coordinates", &Project{Name: "n", Department: "d", Status: ProjectPlanned, StartDate: start, Latitude: ptr(1.0)}, "latitude"},
		{"project bad longitude", &Project{Name: "n", Department: "d", Status: ProjectPlanned, StartDate: start, Latitude: ptr(0.0), Longitude: ptr(-181.0)}, "longitude"},
		{"contract inverted period", &Contract{Title: "t", Department: "d", SupplierName: "s", Status: ContractActive, StartDate: start, EndDate: &before}, "end_date"},
		{"contract bad status", &Contract{Title: "t", Department: "d", SupplierName: "s", Status: "open", StartDate: start}, "status"},
		{"supplier missing rut", &Supplier{Name: "s"}, "rut"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate(now)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	exp := &Expenditure{Date: start, Department: "d", Category: "c", Description: "x", Amount: 10}
	require.NoError(t, exp.Validate(now))
	assert.Equal(t, 2024, exp.Year)
}

// TestPurpose: Validates back-office CRUD stays tenant scoped and preserves creation metadata.
// Scope: Unit Test
// Security: Tenant isolation on admin paths
// Expected: Records are created under the caller's tenant, foreign tenants cannot read or delete them, updates keep created_at.
// Test Case ID: REC-06
func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, audit.NewSlogLogger())

	created, err := svc.Create(ctx, "renca", &Budget{Year: 2024, Department: "Salud", Category: "Atención", PlannedAmount: 10, Base: Base{TenantID: "spoofed", IsPublic: false}}, "u-1")
	require.NoError(t, err)
	base := created.Common()
	assert.Equal(t, "renca", base.TenantID)
	assert.NotEmpty(t, base.ID)

	all, err := svc.List(ctx, KindBudgets, "renca", Filters{}, Page{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "admin listing includes private rows")

	_, err = svc.Get(ctx, KindBudgets, "maipu", base.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	updated, err := svc.Update(ctx, "renca", base.ID, &Budget{Year: 2024, Department: "Salud", Category: "Atención", PlannedAmount: 20, Base: Base{IsPublic: true}}, "u-1")
	require.NoError(t, err)
	assert.Equal(t, base.CreatedAt, updated.Common().CreatedAt)
	assert.True(t, updated.Common().IsPublic)

	_, err = svc.Update(ctx, "renca", base.ID, &Budget{Year: 1990, Department: "Salud", Category: "x"}, "u-1")
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, svc.Delete(ctx, KindBudgets, "maipu", base.ID, "u-2"), ErrRecordNotFound)
	require.NoError(t, svc.Delete(ctx, KindBudgets, "renca", base.ID, "u-1"))

	_, err = svc.List(ctx, KindBudgets, "", Filters{}, Page{})
	assert.ErrorIs(t, err, ErrTenantRequired)
}

// TestPurpose: Validates civil date encoding.
// Scope: Unit Test
// Expected: Dates encode as YYYY-MM-DD and decode from both date and timestamp forms.
// Test Case ID: REC-07
func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-05"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-05T10:00:00-03:00"`), &d))
	assert.Equal(t, NewDate(2024, 3, 5), d)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"05/03/2024"`), &d), ErrValidation)

	kind, err := ParseKind(" Budgets ")
	require.NoError(t, err)
	assert.Equal(t, KindBudgets, kind)
	_, err = ParseKind("users")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
