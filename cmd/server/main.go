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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentrusty/transparencia/internal/assistant"
	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/config"
	"github.com/opentrusty/transparencia/internal/demo"
	"github.com/opentrusty/transparencia/internal/featureflag"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/interaction"
	"github.com/opentrusty/transparencia/internal/llm"
	"github.com/opentrusty/transparencia/internal/notification"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/observability/metrics"
	"github.com/opentrusty/transparencia/internal/observability/tracing"
	"github.com/opentrusty/transparencia/internal/records"
	"github.com/opentrusty/transparencia/internal/session"
	"github.com/opentrusty/transparencia/internal/store/postgres"
	redisstore "github.com/opentrusty/transparencia/internal/store/redis"
	"github.com/opentrusty/transparencia/internal/tenant"
	transportHTTP "github.com/opentrusty/transparencia/internal/transport/http"
	"github.com/opentrusty/transparencia/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "transparencia",
		Short:         "Municipal transparency portal",
		Long:          "Multi-tenant transparency portal: public records, citizen assistant and platform console.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newBootstrapCmd(),
		newSeedDemoCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// loadConfig reads the configuration and installs the global logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.InitLogger(logger.Config{
		Level:          cfg.Observability.LogLevel,
		Format:         cfg.Observability.LogFormat,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newIdentityService(cfg *config.Config, repo identity.UserRepository, auditLogger audit.Logger) *identity.Service {
	hasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	return identity.NewService(
		repo,
		hasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
}

func newAuditLogger(db *postgres.DB) audit.Logger {
	return audit.NewMultiLogger(audit.NewSlogLogger(), audit.NewStoreLogger(postgres.NewAuditRepository(db)))
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("starting transparency portal", logger.Version(cfg.Observability.ServiceVersion))

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		tracer = tracing.Noop()
	}
	defer tracer.Shutdown(context.Background())

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	assistantMetrics, err := metrics.NewAssistantMetrics(meter)
	if err != nil {
		slog.Error("failed to register assistant metrics", logger.Error(err))
	}
	httpMetrics := metrics.NewHTTPMetrics(cfg.Observability.MetricsPrefix)

	// Initialize database
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to database")

	// Optional tenant cache
	var tenantCache tenant.Cache
	if cfg.Redis.URL != "" {
		client, err := redisstore.Open(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		tenantCache = redisstore.NewTenantCache(client, cfg.Redis.TenantTTL)
		slog.Info("tenant cache enabled")
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	recordsRepo := postgres.NewRecordsRepository(db)
	flagRepo := postgres.NewFeatureFlagRepository(db)
	interactionRepo := postgres.NewInteractionRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	auditLogger := audit.NewMultiLogger(audit.NewSlogLogger(), audit.NewStoreLogger(auditRepo))

	// Initialize services
	identityService := newIdentityService(cfg, userRepo, auditLogger)
	if _, err := identity.NewBootstrapService(identityService, identity.BootstrapConfig{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		FullName: cfg.Bootstrap.AdminName,
	}).Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	tenantService := tenant.NewService(tenantRepo, identityService, tenantCache, auditLogger)
	publicReader := records.NewPublicReader(recordsRepo, cfg.Assistant.MaxRowsPerCategory)

	provider, err := llm.NewProvider(llm.EndpointConfig{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Token:    cfg.LLM.Token,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize language model: %w", err)
	}

	recorder := interaction.NewAsyncRecorder(interactionRepo, cfg.Assistant.LogTimeout)
	assistantService := assistant.NewService(
		assistant.NewClassifier(provider, cfg.Assistant.ClassifyTemperature, cfg.Assistant.MaxHistoryTurns),
		publicReader,
		provider,
		recorder,
		tracer,
		assistantMetrics,
		assistant.Config{
			AnswerTemperature: cfg.Assistant.AnswerTemperature,
			MaxHistoryTurns:   cfg.Assistant.MaxHistoryTurns,
			DefaultLocale:     cfg.Assistant.DefaultLocale,
		},
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(transportHTTP.Services{
		Tenants:       tenantService,
		Resolver:      tenant.NewResolver(tenantRepo, tenantCache, cfg.Tenancy.BaseDomain),
		Identity:      identityService,
		Sessions:      session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Records:       records.NewService(recordsRepo, auditLogger),
		Public:        publicReader,
		Assistant:     assistantService,
		Analytics:     interaction.NewAnalytics(interactionRepo),
		Flags:         featureflag.NewService(flagRepo, auditLogger),
		Notifications: notification.NewService(postgres.NewNotificationRepository(db), tenantService, auditLogger),
		Versions:      version.NewService(postgres.NewVersionRepository(db), tenantService, auditLogger, cfg.Versioning.RollbackCheckTTL),
		Seeder:        demo.NewSeeder(recordsRepo, auditLogger),
		AuditStore:    auditRepo,
		AuditLogger:   auditLogger,
		Metrics:       httpMetrics,
	}, transportHTTP.RouterConfig{
		SlugHeader:     cfg.Tenancy.SlugHeader,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.LLM.Timeout,
	})

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		slog.Error("interaction log did not drain", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}
