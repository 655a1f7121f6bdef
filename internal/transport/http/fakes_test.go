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

package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opentrusty/transparencia/internal/assistant"
	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/interaction"
	"github.com/opentrusty/transparencia/internal/llm"
	"github.com/opentrusty/transparencia/internal/rbac"
	"github.com/opentrusty/transparencia/internal/records"
	"github.com/opentrusty/transparencia/internal/session"
	"github.com/opentrusty/transparencia/internal/tenant"
)

// memTenants is an in-memory tenant.Repository
type memTenants struct {
	mu   sync.Mutex
	byID map[string]*tenant.Tenant
}

func newMemTenants(tenants ...*tenant.Tenant) *memTenants {
	m := &memTenants{byID: make(map[string]*tenant.Tenant)}
	for _, t := range tenants {
		m.byID[t.ID] = t
	}
	return m
}

func (m *memTenants) Create(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTenants) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (m *memTenants) Update(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return tenant.ErrTenantNotFound
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTenants) List(_ context.Context, f tenant.ListFilter) ([]*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*tenant.Tenant
	for _, t := range m.byID {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// memRecords is an in-memory records.Repository honoring tenant and
// visibility scope.
type memRecords struct {
	mu   sync.Mutex
	rows []records.Record
}

func (m *memRecords) List(_ context.Context, kind records.Kind, q records.Query) ([]records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []records.Record
	for _, rec := range m.rows {
		b := rec.Common()
		if rec.Kind() != kind || b.TenantID != q.TenantID || (q.PublicOnly && !b.IsPublic) {
			continue
		}
		if q.MappedOnly {
			if p, ok := rec.(*records.Project); !ok || !p.Mapped() {
				continue
			}
		}
		if q.Filters.Year != 0 {
			if bud, ok := rec.(*records.Budget); ok && bud.Year != q.Filters.Year {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memRecords) Get(_ context.Context, kind records.Kind, tenantID, id string) (records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		b := rec.Common()
		if rec.Kind() == kind && b.TenantID == tenantID && b.ID == id {
			return rec, nil
		}
	}
	return nil, records.ErrRecordNotFound
}

func (m *memRecords) Create(_ context.Context, rec records.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

func (m *memRecords) Update(_ context.Context, rec records.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rows {
		if existing.Kind() == rec.Kind() && existing.Common().ID == rec.Common().ID {
			m.rows[i] = rec
			return nil
		}
	}
	return records.ErrRecordNotFound
}

func (m *memRecords) Delete(_ context.Context, kind records.Kind, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.rows {
		b := rec.Common()
		if rec.Kind() == kind && b.TenantID == tenantID && b.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return records.ErrRecordNotFound
}

func (m *memRecords) Stats(ctx context.Context, q records.Query) (*records.Stats, error) {
	var s records.Stats
	rows, _ := m.List(ctx, records.KindBudgets, q)
	for _, rec := range rows {
		b := rec.(*records.Budget)
		s.PlannedBudget += b.PlannedAmount
		s.ExecutedBudget += b.ExecutedAmount
	}
	return &s, nil
}

// memFlags is an in-memory featureflag.Repository
type memFlags struct {
	mu        sync.Mutex
	flags     map[string]*featureflag.Flag
	overrides map[string]map[string]*featureflag.Override
}

func newMemFlags(flags ...*featureflag.Flag) *memFlags {
	m := &memFlags{
		flags:     make(map[string]*featureflag.Flag),
		overrides: make(map[string]map[string]*featureflag.Override),
	}
	for _, f := range flags {
		m.flags[f.Key] = f
	}
	return m
}

func (m *memFlags) List(context.Context) ([]*featureflag.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*featureflag.Flag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, f)
	}
	return out, nil
}

func (m *memFlags) Get(_ context.Context, key string) (*featureflag.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flags[key]
	if !ok {
		return nil, featureflag.ErrFlagNotFound
	}
	return f, nil
}

func (m *memFlags) Create(_ context.Context, f *featureflag.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[f.Key]; ok {
		return featureflag.ErrFlagExists
	}
	m.flags[f.Key] = f
	return nil
}

func (m *memFlags) Update(_ context.Context, f *featureflag.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[f.Key]; !ok {
		return featureflag.ErrFlagNotFound
	}
	m.flags[f.Key] = f
	return nil
}

func (m *memFlags) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[key]; !ok {
		return featureflag.ErrFlagNotFound
	}
	delete(m.flags, key)
	for _, byKey := range m.overrides {
		delete(byKey, key)
	}
	return nil
}

func (m *memFlags) ListOverrides(_ context.Context, tenantID string) ([]*featureflag.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*featureflag.Override
	for _, o := range m.overrides[tenantID] {
		out = append(out, o)
	}
	return out, nil
}

func (m *memFlags) SetOverride(_ context.Context, o *featureflag.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides[o.TenantID] == nil {
		m.overrides[o.TenantID] = make(map[string]*featureflag.Override)
	}
	m.overrides[o.TenantID][o.FlagKey] = o
	return nil
}

func (m *memFlags) DeleteOverride(_ context.Context, tenantID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overrides[tenantID][key]; !ok {
		return featureflag.ErrOverrideNotFound
	}
	delete(m.overrides[tenantID], key)
	return nil
}

// memUsers is an in-memory identity.UserRepository
type memUsers struct {
	mu     sync.Mutex
	users  map[string]*identity.User
	hashes map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*identity.User), hashes: make(map[string]string)}
}

func (m *memUsers) Create(_ context.Context, u *identity.User, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	m.hashes[u.ID] = hash
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, tenantID, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TenantID == tenantID && u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memUsers) List(_ context.Context, tenantID string, limit, offset int) ([]*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identity.User
	for _, u := range m.users {
		if u.TenantID == tenantID && u.DeletedAt == nil {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return identity.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) UpdateLockout(_ context.Context, userID string, attempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *memUsers) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.TenantID != tenantID {
		return identity.ErrUserNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (m *memUsers) GetCredentials(_ context.Context, userID string) (*identity.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.hashes[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &identity.Credentials{UserID: userID, PasswordHash: hash}, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[userID] = hash
	return nil
}

func (m *memUsers) CountByRole(_ context.Context, role rbac.Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.Role == role && u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

// captureAudit records every audit event
type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Log(_ context.Context, e audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Result == "" {
		e.Result = audit.ResultSuccess
	}
	c.events = append(c.events, e)
}

func (c *captureAudit) ofType(eventType string) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeLLM answers classification with a fixed JSON and streams chunks
type fakeLLM struct {
	mu             sync.Mutex
	classification string
	chunks         []string
	streamErr      error
	failAfter      int // fail after this many chunks when >= 0
	streamCalls    int
	// lastClassify joins the contents of the last classification request
	lastClassify string
}

func (f *fakeLLM) Model() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	f.lastClassify = strings.Join(parts, "\n")
	return f.classification, nil
}

func (f *fakeLLM) Stream(context.Context, llm.Request) (*llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	i := 0
	return llm.NewStream(nil, func() (string, error) {
		if f.failAfter >= 0 && i == f.failAfter {
			return "", llm.ErrUpstream
		}
		if i >= len(f.chunks) {
			return "", io.EOF
		}
		i++
		return f.chunks[i-1], nil
	}), nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	rows []interaction.Interaction
}

func (r *fakeRecorder) Record(_ context.Context, in interaction.Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, in)
}

const (
	rencaID      = "t-renca"
	maipuID      = "t-maipu"
	quilicuraID  = "t-quilicura"
	testBaseHost = "transparencia.cl"
)

// testEnv is a router over in-memory stores seeded with three
// municipalities: renca and maipu active, quilicura suspended.
type testEnv struct {
	router   http.Handler
	tenants  *memTenants
	records  *memRecords
	flags    *memFlags
	users    *memUsers
	audit    *captureAudit
	sessions *session.Manager
	identity *identity.Service
	llm      *fakeLLM
	recorder *fakeRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Now().UTC()

	env := &testEnv{
		tenants: newMemTenants(
			&tenant.Tenant{ID: rencaID, Slug: "renca", Name: "Municipalidad de Renca", Status: tenant.StatusActive, CreatedAt: now},
			&tenant.Tenant{ID: maipuID, Slug: "maipu", Name: "Municipalidad de Maipú", Status: tenant.StatusActive, CreatedAt: now},
			&tenant.Tenant{ID: quilicuraID, Slug: "quilicura", Name: "Municipalidad de Quilicura", Status: tenant.StatusSuspended, CreatedAt: now},
		),
		records: &memRecords{rows: []records.Record{
			&records.Budget{Base: records.Base{ID: "pub", TenantID: rencaID, IsPublic: true, CreatedAt: now}, Year: 2024, Department: "Finanzas", Category: "General", PlannedAmount: 150_000_000},
			&records.Budget{Base: records.Base{ID: "priv", TenantID: rencaID, IsPublic: false, CreatedAt: now}, Year: 2024, Department: "Finanzas", Category: "Reservado", PlannedAmount: 999_000_000},
			&records.Budget{Base: records.Base{ID: "other", TenantID: maipuID, IsPublic: true, CreatedAt: now}, Year: 2024, Department: "Obras", Category: "General", PlannedAmount: 555_000_000},
		}},
		flags: newMemFlags(
			&featureflag.Flag{Key: featureflag.FlagAIAssistant, Name: "Asistente IA", DefaultEnabled: true},
			&featureflag.Flag{Key: featureflag.FlagPublicMap, Name: "Mapa de proyectos", DefaultEnabled: true},
		),
		users:    newMemUsers(),
		audit:    &captureAudit{},
		sessions: session.NewManager("test-secret-0123456789abcdef0123", "transparencia-test", time.Hour),
		llm:      &fakeLLM{failAfter: -1},
		recorder: &fakeRecorder{},
	}

	env.identity = identity.NewService(env.users, identity.NewPasswordHasher(16*1024, 1, 1, 16, 32), env.audit, 3, 5*time.Minute)
	reader := records.NewPublicReader(env.records, 100)

	h := NewHandler(Services{
		Tenants:  tenant.NewService(env.tenants, env.identity, nil, env.audit),
		Resolver: tenant.NewResolver(env.tenants, nil, testBaseHost),
		Identity: env.identity,
		Sessions: env.sessions,
		Records:  records.NewService(env.records, env.audit),
		Public:   reader,
		Assistant: assistant.NewService(
			assistant.NewClassifier(env.llm, 0.1, 6),
			reader,
			env.llm,
			env.recorder,
			nil,
			nil,
			assistant.Config{AnswerTemperature: 0.3, MaxHistoryTurns: 6, DefaultLocale: "es-CL"},
		),
		Flags:       featureflag.NewService(env.flags, env.audit),
		AuditLogger: env.audit,
	}, RouterConfig{})
	env.router = NewRouter(h, nil)
	return env
}

// token issues a bearer token without a stored user
func (e *testEnv) token(t *testing.T, userID, tenantID string, role rbac.Role) string {
	t.Helper()
	tok, _, err := e.sessions.Issue(userID, tenantID, role)
	require.NoError(t, err)
	return tok
}

// request builds a request addressed to slug through the tenant header
func request(method, path, slug, token, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:40000"
	req.Host = testBaseHost
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if slug != "" {
		req.Header.Set("X-Tenant-Slug", slug)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
