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
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/transparencia/internal/notification"
)

// NotificationRepository implements notification.Repository
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

var notificationColumns = []string{"id", "tenant_id", "type", "title", "message", "read", "read_at", "created_by", "created_at"}

// Insert stores one notification
func (r *NotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	return r.InsertMany(ctx, []*notification.Notification{n})
}

// InsertMany stores notifications with a single COPY
func (r *NotificationRepository) InsertMany(ctx context.Context, ns []*notification.Notification) error {
	rows := make([][]any, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, []any{n.ID, n.TenantID, n.Type, n.Title, n.Message, n.Read, n.ReadAt, n.CreatedBy, n.CreatedAt})
	}
	_, err := r.db.pool.CopyFrom(ctx, pgx.Identifier{"notifications"}, notificationColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to insert notifications: %w", err)
	}
	return nil
}

// List returns notifications matching filter, newest first
func (r *NotificationRepository) List(ctx context.Context, filter notification.Filter) ([]*notification.Notification, error) {
	var conds []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Read != nil {
		add("read = $%d", *filter.Read)
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(notificationColumns, ", "), where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Type, &n.Title, &n.Message, &n.Read, &n.ReadAt, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkRead marks one notification of tenantID as read. Already read
// notifications keep their original read time.
func (r *NotificationRepository) MarkRead(ctx context.Context, tenantID, id string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE notifications
		SET read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of tenantID as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, tenantID string, at time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2
		WHERE tenant_id = $1 AND NOT read
	`, tenantID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected(), nil
}

// UnreadCount counts unread notifications of tenantID
func (r *NotificationRepository) UnreadCount(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND NOT read
	`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
