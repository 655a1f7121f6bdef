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

// Package interaction records every completed citizen question and
// summarizes them for the back-office.
package interaction

import (
	"context"
	"time"
)

// Interaction is an immutable log row for one answered question
type Interaction struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Intent    string         `json:"intent,omitempty"`
	Category  string         `json:"category,omitempty"`
	HasData   bool           `json:"has_data"`
	Filters   map[string]any `json:"filters,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	CreatedAt time.Time      `json:"created_at"`
}

// CategoryCount is the number of questions routed to a category
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Summary aggregates a tenant's interactions since a point in time
type Summary struct {
	Total        int64           `json:"total"`
	NoData       int64           `json:"no_data"`
	AvgLatencyMS float64         `json:"avg_latency_ms"`
	ByCategory   []CategoryCount `json:"by_category"`
	Recent       []*Interaction  `json:"recent"`
}

// Repository persists interactions
type Repository interface {
	Insert(ctx context.Context, in *Interaction) error
	Summarize(ctx context.Context, tenantID string, since time.Time, recent int) (*Summary, error)
}
