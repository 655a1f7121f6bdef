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

package demo

import (
	"context"
	"testing"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	rows []records.Record
}

func (m *memRepo) List(_ context.Context, kind records.Kind, q records.Query) ([]records.Record, error) {
	var out []records.Record
	for _, r := range m.rows {
		if r.Kind() == kind && r.Common().TenantID == q.TenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Get(context.Context, records.Kind, string, string) (records.Record, error) {
	return nil, records.ErrRecordNotFound
}

func (m *memRepo) Create(_ context.Context, rec records.Record) error {
	m.rows = append(m.rows, rec)
	return nil
}

func (m *memRepo) Update(context.Context, records.Record) error { return nil }

func (m *memRepo) Delete(context.Context, records.Kind, string, string) error { return nil }

func (m *memRepo) Stats(context.Context, records.Query) (*records.Stats, error) {
	return &records.Stats{}, nil
}

// TestPurpose: Validates demo provisioning content.
// Scope: Unit Test
// Expected: Every kind is seeded for the tenant, with two budget years, mapped projects and private rows; a second run is refused.
// Test Case ID: DEMO-01
func TestSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	s := NewSeeder(repo, audit.NewSlogLogger())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	res, err := s.Seed(ctx, "t-renca", "root")
	require.NoError(t, err)
	for _, k := range []records.Kind{records.KindBudgets, records.KindExpenditures, records.KindProjects, records.KindContracts, records.KindSuppliers} {
		assert.Positive(t, res.Inserted[k], k)
	}

	years := map[int]bool{}
	mapped, private := 0, 0
	for _, r := range repo.rows {
		assert.Equal(t, "t-renca", r.Common().TenantID)
		assert.NotEmpty(t, r.Common().ID)
		if !r.Common().IsPublic {
			private++
		}
		switch v := r.(type) {
		case *records.Budget:
			years[v.Year] = true
		case *records.Project:
			if v.Mapped() {
				mapped++
			}
		}
	}
	assert.Equal(t, map[int]bool{2024: true, 2025: true}, years)
	assert.GreaterOrEqual(t, mapped, 2)
	assert.Positive(t, private)

	_, err = s.Seed(ctx, "t-renca", "root")
	assert.ErrorIs(t, err, ErrAlreadySeeded)

	_, err = s.Seed(ctx, "t-maipu", "root")
	assert.NoError(t, err)
}
