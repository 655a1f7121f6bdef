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

package interaction

import (
	"context"
	"time"
)

// MaxRecent caps the recent interactions returned with a summary
const MaxRecent = 50

// Analytics answers back-office questions about assistant usage
type Analytics struct {
	repo Repository
	now  func() time.Time
}

// NewAnalytics creates the analytics service
func NewAnalytics(repo Repository) *Analytics {
	return &Analytics{repo: repo, now: time.Now}
}

// Summary covers the last days days of tenantID, clamped to [1, 365]
func (a *Analytics) Summary(ctx context.Context, tenantID string, days, recent int) (*Summary, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	if recent <= 0 || recent > MaxRecent {
		recent = 10
	}
	since := a.now().UTC().AddDate(0, 0, -days)
	return a.repo.Summarize(ctx, tenantID, since, recent)
}
