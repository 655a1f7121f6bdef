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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeLoginSuccess = "login_success"
	TypeLoginFailed  = "login_failed"
	TypeUserLocked   = "user_locked"
	TypeUserCreated  = "user_created"
	TypeUserUpdated  = "user_updated"
	TypeUserDeleted  = "user_deleted"

	TypeTenantCreated     = "tenant_created"
	TypeTenantUpdated     = "tenant_updated"
	TypeTenantSuspended   = "tenant_suspended"
	TypeTenantReactivated = "tenant_reactivated"
	TypeTenantDeleteBlock = "tenant_delete_blocked"
	TypeDemoDataSeeded    = "demo_data_seeded"
	TypeRecordCreated     = "record_created"
	TypeRecordUpdated     = "record_updated"
	TypeRecordDeleted     = "record_deleted"
	TypeFlagChanged       = "feature_flag_changed"
	TypeFlagOverrideSet   = "feature_flag_override_set"
	TypeFlagOverrideClear = "feature_flag_override_cleared"
	TypeNotificationSent  = "notification_sent"
	TypeVersionCreated    = "version_created"
	TypeVersionAssigned   = "version_assigned"
	TypeRollbackValidated = "rollback_validated"
	TypeRollbackPerformed = "rollback_performed"
	TypeAccessDenied      = "access_denied"
)

// Results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultBlocked = "blocked"
)

// Metadata keys
const (
	AttrReason   = "reason"
	AttrAttempts = "attempts"
)

// Event represents an auditable action
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	TenantID  string         `json:"tenant_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Resource  string         `json:"resource"`
	Result    string         `json:"result"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// Filter narrows a listing of stored audit events
type Filter struct {
	TenantID string
	Type     string
	Result   string
	Limit    int
	Offset   int
}

// Store persists audit events and lists them back
type Store interface {
	Insert(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	event = normalize(event)

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.String("result", event.Result),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range Redact(event.Metadata) {
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// StoreLogger persists events through a Store. Persistence failures are
// reported on the operational log and never returned to the caller.
type StoreLogger struct {
	store Store
}

// NewStoreLogger creates a logger backed by store
func NewStoreLogger(store Store) *StoreLogger {
	return &StoreLogger{store: store}
}

// Log stores the event
func (l *StoreLogger) Log(ctx context.Context, event Event) {
	event = normalize(event)
	event.Metadata = Redact(event.Metadata)
	if err := l.store.Insert(context.WithoutCancel(ctx), event); err != nil {
		slog.ErrorContext(ctx, "failed to persist audit event",
			slog.String("audit_type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// MultiLogger fans an event out to every configured logger
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers; nil entries are skipped
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log forwards the event to each logger in order
func (m *MultiLogger) Log(ctx context.Context, event Event) {
	event = normalize(event)
	for _, l := range m.loggers {
		l.Log(ctx, event)
	}
}

// Redact returns a copy of metadata with secret-looking values masked
func Redact(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return metadata
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if isSecret(k) {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}

func normalize(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Result == "" {
		event.Result = ResultSuccess
	}
	return event
}

var secretFragments = []string{"password", "secret", "token", "authorization", "credential", "hash", "api_key", "private_key"}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretFragments {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
