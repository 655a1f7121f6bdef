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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

// TestPurpose: Validates that defaults for the assistant pipeline are applied when no overrides exist.
// Scope: Unit Test
// Expected: Low classification temperature, 100 rows per category and es-CL locale.
// Test Case ID: CFG-01
func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Assistant.ClassifyTemperature)
	assert.Equal(t, 100, cfg.Assistant.MaxRowsPerCategory)
	assert.Equal(t, "es-CL", cfg.Assistant.DefaultLocale)
	assert.Equal(t, "X-Tenant-Slug", cfg.Tenancy.SlugHeader)
	assert.Equal(t, 30*time.Minute, cfg.Versioning.RollbackCheckTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

// TestPurpose: Validates environment overrides, including list parsing and fallback on malformed durations.
// Scope: Unit Test
// Expected: Overridden values are read, malformed durations fall back to defaults.
// Test Case ID: CFG-02
func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.cl, https://b.cl,")
	t.Setenv("AUTH_TOKEN_TTL", "not-a-duration")
	t.Setenv("RATELIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, []string{"https://a.cl", "https://b.cl"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
}

// TestPurpose: Validates that unsafe or inconsistent configuration is rejected at startup.
// Scope: Unit Test
// Security: Weak signing keys must not be accepted
// Expected: Load fails for a short JWT secret, unknown LLM provider, or missing DB password.
// Test Case ID: CFG-03
func TestLoad_Validation(t *testing.T) {
	t.Run("short jwt secret", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("AUTH_JWT_SECRET", "short")
		_, err := Load()
		assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
	})

	t.Run("unknown provider", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LLM_PROVIDER", "bard")
		_, err := Load()
		assert.ErrorContains(t, err, "LLM_PROVIDER")
	})

	t.Run("missing db password", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "")
		t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD")
	})
}
