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

// Package records holds the transparency records a municipality publishes:
// budgets, expenditures, projects, contracts and suppliers.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownKind    = errors.New("unknown record kind")
	ErrValidation     = errors.New("validation failed")
	ErrTenantRequired = errors.New("tenant is required")
)

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Kind identifies a record collection
type Kind string

const (
	KindBudgets      Kind = "budgets"
	KindExpenditures Kind = "expenditures"
	KindProjects     Kind = "projects"
	KindContracts    Kind = "contracts"
	KindSuppliers    Kind = "suppliers"
)

// PublicKinds are the collections citizens can read
var PublicKinds = []Kind{KindBudgets, KindExpenditures, KindProjects, KindContracts}

// ParseKind validates a collection name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBudgets, KindExpenditures, KindProjects, KindContracts, KindSuppliers:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsPublicKind reports whether k is readable without authentication
func IsPublicKind(k Kind) bool {
	for _, p := range PublicKinds {
		if p == k {
			return true
		}
	}
	return false
}

// Project statuses
const (
	ProjectPlanned    = "planificado"
	ProjectInProgress = "en_progreso"
	ProjectCompleted  = "completado"
	ProjectSuspended  = "suspendido"
)

// Contract statuses
const (
	ContractActive    = "vigente"
	ContractFinished  = "finalizado"
	ContractTendering = "en_licitacion"
	ContractVoid      = "anulado"
)

// Base carries the columns shared by every record
type Base struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Common returns the shared columns
func (b *Base) Common() *Base { return b }

// Record is implemented by every entity in this package
type Record interface {
	Kind() Kind
	Common() *Base
	Validate(now time.Time) error
}

// New returns an empty record of kind k, ready for decoding.
func New(k Kind) (Record, error) {
	switch k {
	case KindBudgets:
		return &Budget{}, nil
	case KindExpenditures:
		return &Expenditure{}, nil
	case KindProjects:
		return &Project{}, nil
	case KindContracts:
		return &Contract{}, nil
	case KindSuppliers:
		return &Supplier{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

// Budget is a planned and executed allocation for one department and year.
// Amounts are whole pesos.
type Budget struct {
	Base
	Year           int    `json:"year"`
	Department     string `json:"department"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	Comuna         string `json:"comuna,omitempty"`
	PlannedAmount  int64  `json:"planned_amount"`
	ExecutedAmount int64  `json:"executed_amount"`
}

func (*Budget) Kind() Kind { return KindBudgets }

// Expenditure is a single payment
type Expenditure struct {
	Base
	Year         int    `json:"year"`
	Date         Date   `json:"date"`
	Department   string `json:"department"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Comuna       string `json:"comuna,omitempty"`
	Amount       int64  `json:"amount"`
	SupplierName string `json:"supplier_name,omitempty"`
	BudgetID     string `json:"budget_id,omitempty"`
}

func (*Expenditure) Kind() Kind { return KindExpenditures }

// Project is a public works or social program. Projects with coordinates
// appear on the public map.
type Project struct {
	Base
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Department   string   `json:"department"`
	Category     string   `json:"category,omitempty"`
	Comuna       string   `json:"comuna,omitempty"`
	Status       string   `json:"status"`
	BudgetAmount int64    `json:"budget_amount"`
	StartDate    Date     `json:"start_date"`
	EndDate      *Date    `json:"end_date,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

func (*Project) Kind() Kind { return KindProjects }

// Mapped reports whether the project carries coordinates
func (p *Project) Mapped() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Contract is an award to a supplier. Its year is the year of StartDate.
type Contract struct {
	Base
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Department   string `json:"department"`
	Category     string `json:"category,omitempty"`
	Comuna       string `json:"comuna,omitempty"`
	SupplierName string `json:"supplier_name"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	StartDate    Date   `json:"start_date"`
	EndDate      *Date  `json:"end_date,omitempty"`
}

func (*Contract) Kind() Kind { return KindContracts }

// Year returns the year the contract started
func (c *Contract) Year() int { return c.StartDate.Year() }

// Supplier is a vendor that appears on expenditures and contracts
type Supplier struct {
	Base
	Name         string `json:"name"`
	RUT          string `json:"rut"`
	Category     string `json:"category,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

func (*Supplier) Kind() Kind { return KindSuppliers }

const dateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate builds a UTC calendar day
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD and full RFC 3339 timestamps
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			*d = Date{}
			return nil
		}
		return invalid("date", "must be a string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return invalid("date", "must be YYYY-MM-DD")
		}
	}
	y, m, day := t.Date()
	*d = NewDate(y, m, day)
	return nil
}
