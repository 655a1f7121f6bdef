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

// Package demo provisions sample transparency data for new municipalities.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/records"
)

// ErrAlreadySeeded is returned when the tenant already has budget data
var ErrAlreadySeeded = errors.New("tenant already has data")

// Result counts the rows inserted per kind
type Result struct {
	TenantID string               `json:"tenant_id"`
	Inserted map[records.Kind]int `json:"inserted"`
}

// Seeder inserts a fixed sample dataset
type Seeder struct {
	repo        records.Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewSeeder creates a seeder writing through repo
func NewSeeder(repo records.Repository, auditLogger audit.Logger) *Seeder {
	return &Seeder{repo: repo, auditLogger: auditLogger, now: time.Now}
}

type department struct {
	name     string
	category string
	planned  int64
}

var departments = []department{
	{"Educación", "educacion", 4_200_000_000},
	{"Salud", "salud", 3_100_000_000},
	{"Obras Públicas", "infraestructura", 2_500_000_000},
	{"Desarrollo Social", "social", 1_200_000_000},
	{"Medio Ambiente", "medio_ambiente", 450_000_000},
	{"Seguridad Ciudadana", "seguridad", 600_000_000},
}

var sectors = []string{"Centro", "Norte", "Sur", "Poniente"}

// Seed inserts two years of budgets plus expenditures, projects, contracts
// and suppliers for tenantID. Roughly one row in five is private.
func (s *Seeder) Seed(ctx context.Context, tenantID, actorID string) (*Result, error) {
	existing, err := s.repo.List(ctx, records.KindBudgets, records.Query{TenantID: tenantID, Page: records.Page{Limit: 1}})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadySeeded
	}

	now := s.now().UTC()
	rows := dataset(now.Year())
	res := &Result{TenantID: tenantID, Inserted: map[records.Kind]int{}}
	for _, rec := range rows {
		if err := rec.Validate(now); err != nil {
			return nil, fmt.Errorf("invalid demo %s: %w", rec.Kind(), err)
		}
		base := rec.Common()
		base.ID = id.NewUUIDv7()
		base.TenantID = tenantID
		base.CreatedAt = now
		base.UpdatedAt = now
		if err := s.repo.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to insert demo %s: %w", rec.Kind(), err)
		}
		res.Inserted[rec.Kind()]++
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeDemoDataSeeded,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: tenantID,
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"rows": len(rows)},
	})
	slog.InfoContext(ctx, "demo data seeded",
		logger.Component("demo"),
		logger.TenantID(tenantID),
		logger.RowsAffected(int64(len(rows))),
	)
	return res, nil
}

func dataset(year int) []records.Record {
	var out []records.Record
	n := 0
	public := func() bool {
		n++
		return n%5 != 0
	}

	for _, y := range []int{year - 1, year} {
		for i, d := range departments {
			executed := d.planned * int64(60+i*5) / 100
			if y < year {
				executed = d.planned * int64(90+i) / 100
			}
			out = append(out, &records.Budget{
				Base:           records.Base{IsPublic: public()},
				Year:           y,
				Department:     d.name,
				Category:       d.category,
				Description:    fmt.Sprintf("Presupuesto %s %d", d.name, y),
				Comuna:         sectors[i%len(sectors)],
				PlannedAmount:  d.planned,
				ExecutedAmount: executed,
			})
		}
	}

	suppliers := []*records.Supplier{
		{Name: "Constructora Los Andes SpA", RUT: "76.123.456-7", Category: "infraestructura", ContactEmail: "contacto@losandes.cl"},
		{Name: "Servicios Médicos del Sur Ltda", RUT: "77.234.567-8", Category: "salud"},
		{Name: "Editorial Escolar SA", RUT: "96.345.678-9", Category: "educacion"},
		{Name: "Áreas Verdes Limitada", RUT: "78.456.789-0", Category: "medio_ambiente"},
	}
	for _, sup := range suppliers {
		sup.IsPublic = true
		out = append(out, sup)
	}

	for month := time.January; month <= time.December; month += 2 {
		for i, d := range departments[:4] {
			sup := suppliers[i%len(suppliers)]
			out = append(out, &records.Expenditure{
				Base:         records.Base{IsPublic: public()},
				Date:         records.NewDate(year-1, month, 10+i),
				Department:   d.name,
				Category:     d.category,
				Description:  fmt.Sprintf("Pago %s a %s", d.category, sup.Name),
				Comuna:       sectors[i%len(sectors)],
				Amount:       d.planned / 40,
				SupplierName: sup.Name,
			})
		}
	}

	coord := func(v float64) *float64 { return &v }
	end := records.NewDate(year-1, time.November, 30)
	out = append(out,
		&records.Project{
			Base: records.Base{IsPublic: true}, Name: "Reposición Escuela Básica Los Aromos",
			Department: "Educación", Category: "educacion", Comuna: "Norte",
			Status: records.ProjectInProgress, BudgetAmount: 1_800_000_000,
			StartDate: records.NewDate(year-1, time.March, 1),
			Latitude:  coord(-33.4080), Longitude: coord(-70.7270),
		},
		&records.Project{
			Base: records.Base{IsPublic: true}, Name: "Plaza Activa Sector Sur",
			Department: "Obras Públicas", Category: "infraestructura", Comuna: "Sur",
			Status: records.ProjectCompleted, BudgetAmount: 320_000_000,
			StartDate: records.NewDate(year-1, time.February, 15), EndDate: &end,
			Latitude: coord(-33.4195), Longitude: coord(-70.7302),
		},
		&records.Project{
			Base: records.Base{IsPublic: true}, Name: "CESFAM Poniente",
			Department: "Salud", Category: "salud", Comuna: "Poniente",
			Status: records.ProjectPlanned, BudgetAmount: 2_400_000_000,
			StartDate: records.NewDate(year, time.September, 1),
			Latitude:  coord(-33.4101), Longitude: coord(-70.7455),
		},
		&records.Project{
			Base: records.Base{IsPublic: true}, Name: "Programa Reciclaje Comunal",
			Department: "Medio Ambiente", Category: "medio_ambiente", Comuna: "Centro",
			Status: records.ProjectInProgress, BudgetAmount: 85_000_000,
			StartDate: records.NewDate(year, time.January, 10),
		},
		&records.Project{
			Base: records.Base{IsPublic: false}, Name: "Cámaras de Televigilancia",
			Department: "Seguridad Ciudadana", Category: "seguridad", Comuna: "Centro",
			Status: records.ProjectSuspended, BudgetAmount: 210_000_000,
			StartDate: records.NewDate(year-1, time.June, 1),
			Latitude:  coord(-33.4050), Longitude: coord(-70.7380),
		},
	)

	contractEnd := records.NewDate(year+1, time.December, 31)
	out = append(out,
		&records.Contract{
			Base: records.Base{IsPublic: true}, Title: "Construcción Escuela Los Aromos",
			Department: "Educación", Category: "infraestructura", Comuna: "Norte",
			SupplierName: suppliers[0].Name, Amount: 1_650_000_000, Status: records.ContractActive,
			StartDate: records.NewDate(year-1, time.April, 1), EndDate: &contractEnd,
		},
		&records.Contract{
			Base: records.Base{IsPublic: true}, Title: "Mantención de áreas verdes",
			Department: "Medio Ambiente", Category: "medio_ambiente", Comuna: "Sur",
			SupplierName: suppliers[3].Name, Amount: 140_000_000, Status: records.ContractFinished,
			StartDate: records.NewDate(year-1, time.January, 1), EndDate: &end,
		},
		&records.Contract{
			Base: records.Base{IsPublic: true}, Title: "Equipamiento CESFAM Poniente",
			Department: "Salud", Category: "salud", Comuna: "Poniente",
			SupplierName: suppliers[1].Name, Amount: 390_000_000, Status: records.ContractTendering,
			StartDate: records.NewDate(year, time.August, 1),
		},
		&records.Contract{
			Base: records.Base{IsPublic: false}, Title: "Textos escolares",
			Department: "Educación", Category: "educacion", Comuna: "Centro",
			SupplierName: suppliers[2].Name, Amount: 48_000_000, Status: records.ContractVoid,
			StartDate: records.NewDate(year-1, time.March, 1),
		},
	)
	return out
}
