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

package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/opentrusty/transparencia/internal/observability/logger"
)

// Resolver maps an incoming request to its tenant
type Resolver struct {
	repo       Repository
	cache      Cache
	baseDomain string
}

// NewResolver creates a resolver for hosts under baseDomain. cache may be nil.
func NewResolver(repo Repository, cache Cache, baseDomain string) *Resolver {
	return &Resolver{
		repo:       repo,
		cache:      cache,
		baseDomain: strings.Trim(strings.ToLower(baseDomain), "."),
	}
}

// Resolve returns the active tenant addressed by explicitSlug or, when that
// is empty, by the subdomain of host. Unknown slugs yield ErrTenantNotFound
// and tenants that are not active yield ErrTenantUnavailable.
func (r *Resolver) Resolve(ctx context.Context, host, explicitSlug string) (*Tenant, error) {
	t, err := r.Lookup(ctx, host, explicitSlug)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantUnavailable
	}
	return t, nil
}

// Lookup is Resolve without the status check.
func (r *Resolver) Lookup(ctx context.Context, host, explicitSlug string) (*Tenant, error) {
	raw := explicitSlug
	if strings.TrimSpace(raw) == "" {
		raw = r.SlugFromHost(host)
	}
	slug, err := NormalizeSlug(raw)
	if err != nil {
		return nil, ErrTenantNotFound
	}

	if r.cache != nil {
		t, err := r.cache.Get(ctx, slug)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			slog.WarnContext(ctx, "tenant cache read failed", logger.TenantSlug(slug), logger.Error(err))
		}
	}

	t, err := r.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, t); err != nil {
			slog.WarnContext(ctx, "tenant cache write failed", logger.TenantSlug(slug), logger.Error(err))
		}
	}
	return t, nil
}

// SlugFromHost extracts the single-label subdomain of the base domain from
// host, e.g. "renca" from "renca.transparencia.cl:8080". It returns "" when
// host is not a direct subdomain.
func (r *Resolver) SlugFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if r.baseDomain == "" {
		return ""
	}
	sub, ok := strings.CutSuffix(host, "."+r.baseDomain)
	if !ok || sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
