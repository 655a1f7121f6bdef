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

package notification

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	items []*Notification
}

func (m *memRepo) Insert(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func (m *memRepo) InsertMany(_ context.Context, ns []*Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, ns...)
	return nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.items {
		if f.TenantID != "" && n.TenantID != f.TenantID {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.Read != nil && n.Read != *f.Read {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) MarkRead(_ context.Context, tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.TenantID == tenantID {
			n.Read = true
			n.ReadAt = &at
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memRepo) MarkAllRead(_ context.Context, tenantID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.TenantID == tenantID && !item.Read {
			item.Read = true
			item.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memRepo) UnreadCount(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.TenantID == tenantID && !item.Read {
			n++
		}
	}
	return n, nil
}

type staticTenants []string

func (s staticTenants) ActiveTenantIDs(context.Context) ([]string, error) { return s, nil }

// TestPurpose: Validates notification creation and read tracking per tenant.
// Scope: Unit Test
// Expected: Notifications are validated, read state is tenant scoped and counts follow.
// Test Case ID: NTF-01
func TestService_ReadTracking(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, staticTenants{}, audit.NewSlogLogger())

	_, err := svc.Create(ctx, "renca", Input{Type: "gossip", Title: "x", Message: "y"}, "root")
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = svc.Create(ctx, "renca", Input{Title: " ", Message: "y"}, "root")
	assert.ErrorIs(t, err, ErrTitleRequired)
	_, err = svc.Create(ctx, "renca", Input{Title: "x"}, "root")
	assert.ErrorIs(t, err, ErrMessageRequired)

	first, err := svc.Create(ctx, "renca", Input{Title: "Mantención", Message: "El sábado"}, "root")
	require.NoError(t, err)
	assert.Equal(t, TypeInfo, first.Type)
	_, err = svc.Create(ctx, "renca", Input{Type: "ALERT", Title: "Corte", Message: "Servicio"}, "root")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "maipu", Input{Title: "Hola", Message: "Bienvenidos"}, "root")
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, "renca")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, svc.MarkRead(ctx, "maipu", first.ID), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(ctx, "renca", first.ID))

	unread := false
	list, err := svc.List(ctx, Filter{TenantID: "renca", Read: &unread})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeAlert, list[0].Type)

	n, err := svc.MarkAllRead(ctx, "renca")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	count, err = svc.UnreadCount(ctx, "maipu")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestPurpose: Validates bulk delivery.
// Scope: Unit Test
// Expected: Listed ids are deduplicated; All targets every active tenant; no recipients is an error.
// Test Case ID: NTF-02
func TestService_BulkCreate(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	svc := NewService(repo, staticTenants{"t1", "t2", "t3"}, audit.NewSlogLogger())
	content := Input{Type: TypeUpdate, Title: "Versión 2.1.0", Message: "Nueva versión disponible"}

	sent, err := svc.BulkCreate(ctx, BulkInput{Input: content, TenantIDs: []string{"t1", "t1", " "}}, "root")
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	sent, err = svc.BulkCreate(ctx, BulkInput{Input: content, All: true}, "root")
	require.NoError(t, err)
	require.Len(t, sent, 3)
	assert.Equal(t, "t3", sent[2].TenantID)

	_, err = svc.BulkCreate(ctx, BulkInput{Input: content}, "root")
	assert.ErrorIs(t, err, ErrNoRecipients)

	all, err := svc.List(ctx, Filter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
