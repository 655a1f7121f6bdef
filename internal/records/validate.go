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
	"strings"
	"time"
)

const minYear = 2000

func checkYear(field string, year int, now time.Time) error {
	if year < minYear || year > now.Year()+5 {
		return invalid(field, "out of range")
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

func nonNegative(field string, v int64) error {
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

func checkPeriod(start Date, end *Date, now time.Time) error {
	if start.IsZero() {
		return invalid("start_date", "is required")
	}
	if err := checkYear("start_date", start.Year(), now); err != nil {
		return err
	}
	if end != nil && !end.IsZero() && end.Before(start.Time) {
		return invalid("end_date", "must not be before start_date")
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Budget) Validate(now time.Time) error {
	return firstError(
		checkYear("year", b.Year, now),
		required("department", b.Department),
		required("category", b.Category),
		nonNegative("planned_amount", b.PlannedAmount),
		nonNegative("executed_amount", b.ExecutedAmount),
	)
}

// Validate fills Year from Date when it is unset.
func (e *Expenditure) Validate(now time.Time) error {
	if e.Date.IsZero() {
		return invalid("date", "is required")
	}
	if e.Year == 0 {
		e.Year = e.Date.Year()
	}
	if e.Year != e.Date.Year() {
		return invalid("year", "does not match date")
	}
	return firstError(
		checkYear("year", e.Year, now),
		required("department", e.Department),
		required("category", e.Category),
		required("description", e.Description),
		nonNegative("amount", e.Amount),
	)
}

func (p *Project) Validate(now time.Time) error {
	if err := firstError(
		required("name", p.Name),
		required("department", p.Department),
		nonNegative("budget_amount", p.BudgetAmount),
		checkPeriod(p.StartDate, p.EndDate, now),
	); err != nil {
		return err
	}
	switch p.Status {
	case ProjectPlanned, ProjectInProgress, ProjectCompleted, ProjectSuspended:
	default:
		return invalid("status", "unknown project status")
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return invalid("latitude", "latitude and longitude must be set together")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return invalid("latitude", "out of range")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return invalid("longitude", "out of range")
	}
	return nil
}

func (c *Contract) Validate(now time.Time) error {
	if err := firstError(
		required("title", c.Title),
		required("department", c.Department),
		required("supplier_name", c.SupplierName),
		nonNegative("amount", c.Amount),
		checkPeriod(c.StartDate, c.EndDate, now),
	); err != nil {
		return err
	}
	switch c.Status {
	case ContractActive, ContractFinished, ContractTendering, ContractVoid:
		return nil
	}
	return invalid("status", "unknown contract status")
}

func (s *Supplier) Validate(time.Time) error {
	return firstError(
		required("name", s.Name),
		required("rut", s.RUT),
	)
}
