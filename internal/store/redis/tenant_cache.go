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

// Package redis caches resolved tenants in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/opentrusty/transparencia/internal/tenant"
)

const keyPrefix = "transparencia:tenant:"

// Open connects to the Redis server at url and pings it.
func Open(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// TenantCache implements tenant.Cache with JSON values and a fixed TTL
type TenantCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewTenantCache creates a tenant cache over client
func NewTenantCache(client *goredis.Client, ttl time.Duration) *TenantCache {
	return &TenantCache{client: client, ttl: ttl}
}

// Get returns the cached tenant for slug or tenant.ErrCacheMiss
func (c *TenantCache) Get(ctx context.Context, slug string) (*tenant.Tenant, error) {
	raw, err := c.client.Get(ctx, keyPrefix+slug).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, tenant.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var t tenant.Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		// A corrupt entry is dropped and treated as a miss.
		_ = c.client.Del(ctx, keyPrefix+slug).Err()
		return nil, tenant.ErrCacheMiss
	}
	return &t, nil
}

// Set stores t under its slug
func (c *TenantCache) Set(ctx context.Context, t *tenant.Tenant) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tenant: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+t.Slug, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the entry for slug
func (c *TenantCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, keyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
