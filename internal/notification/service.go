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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/observability/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// TenantLister enumerates recipients for broadcast notifications
type TenantLister interface {
	ActiveTenantIDs(ctx context.Context) ([]string, error)
}

// Service provides notification business logic
type Service struct {
	repo        Repository
	tenants     TenantLister
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new notification service
func NewService(repo Repository, tenants TenantLister, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, tenants: tenants, auditLogger: auditLogger, now: time.Now}
}

// Input carries the content of a new notification
type Input struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BulkInput addresses Input to TenantIDs, or to every active tenant when All
// is set.
type BulkInput struct {
	Input
	TenantIDs []string `json:"tenant_ids"`
	All       bool     `json:"all"`
}

func (in Input) normalize() (Input, error) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if in.Type == "" {
		in.Type = TypeInfo
	}
	if !validType(in.Type) {
		return in, ErrInvalidType
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, ErrTitleRequired
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return in, ErrMessageRequired
	}
	return in, nil
}

// List returns notifications matching filter, newest first
func (s *Service) List(ctx context.Context, filter Filter) ([]*Notification, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Type != "" && !validType(filter.Type) {
		return nil, ErrInvalidType
	}
	return s.repo.List(ctx, filter)
}

// Create sends one notification to tenantID
func (s *Service) Create(ctx context.Context, tenantID string, in Input, actorID string) (*Notification, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	n := s.build(tenantID, in, actorID)
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeNotificationSent,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: n.ID,
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"type": n.Type},
	})
	return n, nil
}

// BulkCreate sends the same notification to many tenants in one write
func (s *Service) BulkCreate(ctx context.Context, in BulkInput, actorID string) ([]*Notification, error) {
	content, err := in.Input.normalize()
	if err != nil {
		return nil, err
	}

	recipients := in.TenantIDs
	if in.All {
		recipients, err = s.tenants.ActiveTenantIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenants: %w", err)
		}
	}
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	out := make([]*Notification, 0, len(recipients))
	for _, tenantID := range recipients {
		out = append(out, s.build(tenantID, content, actorID))
	}
	if err := s.repo.InsertMany(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to create notifications: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeNotificationSent,
		ActorID:  actorID,
		Resource: "notification_bulk",
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"type": content.Type, "recipients": len(out), "all": in.All},
	})
	slog.InfoContext(ctx, "bulk notification sent",
		logger.Component("notification"),
		logger.RowsAffected(int64(len(out))),
	)
	return out, nil
}

// MarkRead marks one notification of tenantID as read
func (s *Service) MarkRead(ctx context.Context, tenantID, notificationID string) error {
	return s.repo.MarkRead(ctx, tenantID, notificationID, s.now().UTC())
}

// MarkAllRead marks every unread notification of tenantID as read
func (s *Service) MarkAllRead(ctx context.Context, tenantID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, tenantID, s.now().UTC())
}

// UnreadCount returns the number of unread notifications of tenantID
func (s *Service) UnreadCount(ctx context.Context, tenantID string) (int64, error) {
	return s.repo.UnreadCount(ctx, tenantID)
}

func (s *Service) build(tenantID string, in Input, actorID string) *Notification {
	return &Notification{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		CreatedBy: actorID,
		CreatedAt: s.now().UTC(),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
