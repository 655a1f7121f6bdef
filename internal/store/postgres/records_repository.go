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
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/transparencia/internal/records"
)

// RecordsRepository implements records.Repository over one table per kind
type RecordsRepository struct {
	db *DB
}

// NewRecordsRepository creates a new records repository
func NewRecordsRepository(db *DB) *RecordsRepository {
	return &RecordsRepository{db: db}
}

const baseColumns = "id, tenant_id, is_public, created_at, updated_at"

// kindSpec maps a record kind onto its table. Empty filter expressions mean
// the filter does not apply to the kind and is ignored.
type kindSpec struct {
	table      string
	columns    []string
	yearExpr   string
	department bool
	comuna     bool
	status     bool
	mappable   bool
	scanFields func(rec records.Record) []any
	values     func(rec records.Record) []any
}

var kindSpecs = map[records.Kind]*kindSpec{
	records.KindBudgets: {
		table:      "budgets",
		columns:    []string{"year", "department", "category", "description", "comuna", "planned_amount", "executed_amount"},
		yearExpr:   "year",
		department: true,
		comuna:     true,
		scanFields: func(rec records.Record) []any {
			b := rec.(*records.Budget)
			return []any{&b.Year, &b.Department, &b.Category, &b.Description, &b.Comuna, &b.PlannedAmount, &b.ExecutedAmount}
		},
		values: func(rec records.Record) []any {
			b := rec.(*records.Budget)
			return []any{b.Year, b.Department, b.Category, b.Description, b.Comuna, b.PlannedAmount, b.ExecutedAmount}
		},
	},
	records.KindExpenditures: {
		table:      "expenditures",
		columns:    []string{"year", "date", "department", "category", "description", "comuna", "amount", "supplier_name", "budget_id"},
		yearExpr:   "year",
		department: true,
		comuna:     true,
		scanFields: func(rec records.Record) []any {
			e := rec.(*records.Expenditure)
			return []any{&e.Year, &e.Date.Time, &e.Department, &e.Category, &e.Description, &e.Comuna, &e.Amount, &e.SupplierName, &e.BudgetID}
		},
		values: func(rec records.Record) []any {
			e := rec.(*records.Expenditure)
			return []any{e.Year, e.Date.Time, e.Department, e.Category, e.Description, e.Comuna, e.Amount, e.SupplierName, e.BudgetID}
		},
	},
	records.KindProjects: {
		table: "projects",
		columns: []string{"name", "description", "department", "category", "comuna", "status",
			"budget_amount", "start_date", "end_date", "latitude", "longitude"},
		yearExpr:   "EXTRACT(YEAR FROM start_date)::int",
		department: true,
		comuna:     true,
		status:     true,
		mappable:   true,
		scanFields: func(rec records.Record) []any {
			p := rec.(*records.Project)
			return []any{&p.Name, &p.Description, &p.Department, &p.Category, &p.Comuna, &p.Status,
				&p.BudgetAmount, &p.StartDate.Time, &dateScanner{&p.EndDate}, &p.Latitude, &p.Longitude}
		},
		values: func(rec records.Record) []any {
			p := rec.(*records.Project)
			return []any{p.Name, p.Description, p.Department, p.Category, p.Comuna, p.Status,
				p.BudgetAmount, p.StartDate.Time, dateValue(p.EndDate), p.Latitude, p.Longitude}
		},
	},
	records.KindContracts: {
		table: "contracts",
		columns: []string{"title", "description", "department", "category", "comuna", "supplier_name",
			"amount", "status", "start_date", "end_date"},
		yearExpr:   "EXTRACT(YEAR FROM start_date)::int",
		department: true,
		comuna:     true,
		status:     true,
		scanFields: func(rec records.Record) []any {
			c := rec.(*records.Contract)
			return []any{&c.Title, &c.Description, &c.Department, &c.Category, &c.Comuna, &c.SupplierName,
				&c.Amount, &c.Status, &c.StartDate.Time, &dateScanner{&c.EndDate}}
		},
		values: func(rec records.Record) []any {
			c := rec.(*records.Contract)
			return []any{c.Title, c.Description, c.Department, c.Category, c.Comuna, c.SupplierName,
				c.Amount, c.Status, c.StartDate.Time, dateValue(c.EndDate)}
		},
	},
	records.KindSuppliers: {
		table:   "suppliers",
		columns: []string{"name", "rut", "category", "contact_email"},
		scanFields: func(rec records.Record) []any {
			s := rec.(*records.Supplier)
			return []any{&s.Name, &s.RUT, &s.Category, &s.ContactEmail}
		},
		values: func(rec records.Record) []any {
			s := rec.(*records.Supplier)
			return []any{s.Name, s.RUT, s.Category, s.ContactEmail}
		},
	},
}

func specFor(kind records.Kind) (*kindSpec, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", records.ErrUnknownKind, kind)
	}
	return spec, nil
}

func (s *kindSpec) selectList() string {
	return baseColumns + ", " + strings.Join(s.columns, ", ")
}

func (s *kindSpec) scan(kind records.Kind, row pgx.Row) (records.Record, error) {
	rec, err := records.New(kind)
	if err != nil {
		return nil, err
	}
	base := rec.Common()
	dest := append([]any{&base.ID, &base.TenantID, &base.IsPublic, &base.CreatedAt, &base.UpdatedAt}, s.scanFields(rec)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return rec, nil
}

// where renders the tenant-scoped predicate of q. tenant_id is always the
// first argument.
func (s *kindSpec) where(q records.Query) (string, []any) {
	args := []any{q.TenantID}
	conds := []string{"tenant_id = $1"}
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if q.PublicOnly {
		conds = append(conds, "is_public = TRUE")
	}
	if q.MappedOnly {
		if !s.mappable {
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, "latitude IS NOT NULL AND longitude IS NOT NULL")
		}
	}

	f := q.Filters
	if f.Year != 0 && s.yearExpr != "" {
		add(s.yearExpr+" = $%d", f.Year)
	}
	if f.Department != "" && s.department {
		add("LOWER(department) = LOWER($%d)", f.Department)
	}
	if f.Category != "" {
		add("LOWER(category) = LOWER($%d)", f.Category)
	}
	if f.Comuna != "" && s.comuna {
		add("LOWER(comuna) = LOWER($%d)", f.Comuna)
	}
	if f.Status != "" && s.status {
		add("status = $%d", f.Status)
	}
	return strings.Join(conds, " AND "), args
}

// List returns rows of kind matching q, newest first
func (r *RecordsRepository) List(ctx context.Context, kind records.Kind, q records.Query) ([]records.Record, error) {
	if q.TenantID == "" {
		return nil, records.ErrTenantRequired
	}
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	where, args := spec.where(q)
	var limit any
	if q.Page.Limit > 0 {
		limit = q.Page.Limit
	}
	args = append(args, limit, max(q.Page.Offset, 0))
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		spec.selectList(), spec.table, where, len(args)-1, len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		rec, err := spec.scan(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get retrieves one row of tenantID
func (r *RecordsRepository) Get(ctx context.Context, kind records.Kind, tenantID, id string) (records.Record, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND id = $2`, spec.selectList(), spec.table)
	rec, err := spec.scan(kind, r.db.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return rec, nil
}

// Create inserts rec
func (r *RecordsRepository) Create(ctx context.Context, rec records.Record) error {
	spec, err := specFor(rec.Kind())
	if err != nil {
		return err
	}
	base := rec.Common()
	args := append([]any{base.ID, base.TenantID, base.IsPublic, base.CreatedAt, base.UpdatedAt}, spec.values(rec)...)
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, spec.table, spec.selectList(), strings.Join(placeholders, ", "))
	if _, err := r.db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", rec.Kind(), err)
	}
	return nil
}

// Update replaces the mutable columns of rec within its tenant
func (r *RecordsRepository) Update(ctx context.Context, rec records.Record) error {
	spec, err := specFor(rec.Kind())
	if err != nil {
		return err
	}
	base := rec.Common()
	args := []any{base.TenantID, base.ID, base.IsPublic, base.UpdatedAt}
	sets := []string{"is_public = $3", "updated_at = $4"}
	for i, v := range spec.values(rec) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", spec.columns[i], len(args)))
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE tenant_id = $1 AND id = $2`, spec.table, strings.Join(sets, ", "))
	result, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rec.Kind(), err)
	}
	if result.RowsAffected() == 0 {
		return records.ErrRecordNotFound
	}
	return nil
}

// Delete removes one row of tenantID
func (r *RecordsRepository) Delete(ctx context.Context, kind records.Kind, tenantID, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	result, err := r.db.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = $2`, spec.table), tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return records.ErrRecordNotFound
	}
	return nil
}

// Stats aggregates budgets, expenditures, projects and contracts matching q
// in a single round trip.
func (r *RecordsRepository) Stats(ctx context.Context, q records.Query) (*records.Stats, error) {
	if q.TenantID == "" {
		return nil, records.ErrTenantRequired
	}
	q.MappedOnly = false

	aggregates := []struct {
		kind    records.Kind
		selects string
		dest    func(s *records.Stats) []any
	}{
		{records.KindBudgets, "COALESCE(SUM(planned_amount), 0)::bigint, COALESCE(SUM(executed_amount), 0)::bigint",
			func(s *records.Stats) []any { return []any{&s.PlannedBudget, &s.ExecutedBudget} }},
		{records.KindExpenditures, "COALESCE(SUM(amount), 0)::bigint",
			func(s *records.Stats) []any { return []any{&s.TotalExpenditure} }},
		{records.KindProjects, fmt.Sprintf("COUNT(*), COUNT(*) FILTER (WHERE status = '%s')", records.ProjectInProgress),
			func(s *records.Stats) []any { return []any{&s.ProjectCount, &s.ActiveProjects} }},
		{records.KindContracts, fmt.Sprintf("COUNT(*), COUNT(*) FILTER (WHERE status = '%s')", records.ContractActive),
			func(s *records.Stats) []any { return []any{&s.ContractCount, &s.ActiveContracts} }},
	}

	batch := &pgx.Batch{}
	for _, a := range aggregates {
		spec := kindSpecs[a.kind]
		where, args := spec.where(q)
		batch.Queue(fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, a.selects, spec.table, where), args...)
	}

	results := r.db.pool.SendBatch(ctx, batch)
	defer results.Close()

	var stats records.Stats
	for _, a := range aggregates {
		if err := results.QueryRow().Scan(a.dest(&stats)...); err != nil {
			return nil, fmt.Errorf("failed to aggregate %s: %w", a.kind, err)
		}
	}
	return &stats, nil
}

// dateScanner scans a nullable DATE into a *records.Date field
type dateScanner struct {
	dst **records.Date
}

func (d *dateScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.dst = nil
	case time.Time:
		*d.dst = &records.Date{Time: v}
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
	return nil
}

func dateValue(d *records.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}
