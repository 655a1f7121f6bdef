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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	rows  []*Interaction
	err   error
	delay time.Duration
	since time.Time
}

func (m *memRepo) Insert(ctx context.Context, in *Interaction) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, in)
	return nil
}

func (m *memRepo) Summarize(_ context.Context, _ string, since time.Time, recent int) (*Summary, error) {
	m.since = since
	return &Summary{Total: int64(len(m.rows)), Recent: make([]*Interaction, 0, recent)}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// TestPurpose: Validates that records survive request cancellation and are drained on close.
// Scope: Unit Test
// Expected: A cancelled request context still persists the row; Close waits for it; later records are dropped.
// Test Case ID: INT-01
func TestAsyncRecorder_DetachedAndDrained(t *testing.T) {
	repo := &memRepo{delay: 20 * time.Millisecond}
	rec := NewAsyncRecorder(repo, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Record(ctx, Interaction{TenantID: "renca", Question: "q", HasData: true})
	cancel()

	require.NoError(t, rec.Close(context.Background()))
	require.Equal(t, 1, repo.count())
	assert.NotEmpty(t, repo.rows[0].ID)
	assert.False(t, repo.rows[0].CreatedAt.IsZero())

	rec.Record(context.Background(), Interaction{TenantID: "renca"})
	assert.Equal(t, 1, repo.count())
}

// TestPurpose: Validates that persistence failures and slow stores never reach the caller.
// Scope: Unit Test
// Expected: Record returns immediately; a write slower than the timeout is abandoned; Close honors its context.
// Test Case ID: INT-02
func TestAsyncRecorder_FailuresSwallowed(t *testing.T) {
	failing := NewAsyncRecorder(&memRepo{err: errors.New("db down")}, time.Second)
	failing.Record(context.Background(), Interaction{TenantID: "t"})
	require.NoError(t, failing.Close(context.Background()))

	slow := &memRepo{delay: time.Second}
	rec := NewAsyncRecorder(slow, 10*time.Millisecond)
	start := time.Now()
	rec.Record(context.Background(), Interaction{TenantID: "t"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 0, slow.count())
}

// TestPurpose: Validates analytics window clamping.
// Scope: Unit Test
// Expected: Non-positive windows default to 30 days and large windows clamp to 365.
// Test Case ID: INT-03
func TestAnalytics_Window(t *testing.T) {
	repo := &memRepo{}
	a := NewAnalytics(repo)
	fixed := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	_, err := a.Summary(context.Background(), "t", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, fixed.AddDate(0, 0, -30), repo.since)

	_, err = a.Summary(context.Background(), "t", 1000, 5)
	require.NoError(t, err)
	assert.Equal(t, fixed.AddDate(0, 0, -365), repo.since)
}
