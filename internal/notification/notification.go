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

// Package notification delivers platform messages to municipality staff.
package notification

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidType          = errors.New("invalid notification type")
	ErrTitleRequired        = errors.New("title is required")
	ErrMessageRequired      = errors.New("message is required")
	ErrNoRecipients         = errors.New("no recipient tenants")
)

// Notification types
const (
	TypeInfo    = "info"
	TypeWarning = "warning"
	TypeAlert   = "alert"
	TypeUpdate  = "update"
)

// Notification is a message addressed to one tenant's staff
type Notification struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Filter narrows a listing. An empty TenantID lists every tenant and is
// reserved for platform callers.
type Filter struct {
	TenantID string
	Type     string
	Read     *bool
	Limit    int
	Offset   int
}

// Repository defines the interface for notification storage
type Repository interface {
	Insert(ctx context.Context, n *Notification) error
	InsertMany(ctx context.Context, ns []*Notification) error
	List(ctx context.Context, filter Filter) ([]*Notification, error)
	MarkRead(ctx context.Context, tenantID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, tenantID string, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, tenantID string) (int64, error)
}

func validType(t string) bool {
	switch t {
	case TypeInfo, TypeWarning, TypeAlert, TypeUpdate:
		return true
	}
	return false
}
