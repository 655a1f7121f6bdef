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

import "context"

// Stats are aggregates over the public records of one tenant
type Stats struct {
	PlannedBudget    int64 `json:"planned_budget"`
	ExecutedBudget   int64 `json:"executed_budget"`
	TotalExpenditure int64 `json:"total_expenditure"`
	ProjectCount     int64 `json:"project_count"`
	ActiveProjects   int64 `json:"active_projects"`
	ContractCount    int64 `json:"contract_count"`
	ActiveContracts  int64 `json:"active_contracts"`
}

// Repository defines the interface for record persistence. Every method is
// scoped to a single tenant.
type Repository interface {
	List(ctx context.Context, kind Kind, q Query) ([]Record, error)
	Get(ctx context.Context, kind Kind, tenantID, id string) (Record, error)
	Create(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, kind Kind, tenantID, id string) error
	// Stats aggregates rows matching q. Status filters apply only to the
	// project and contract counts.
	Stats(ctx context.Context, q Query) (*Stats, error)
}
