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

	"github.com/spf13/cobra"

	"github.com/opentrusty/transparencia/internal/demo"
	"github.com/opentrusty/transparencia/internal/identity"
	"github.com/opentrusty/transparencia/internal/store/postgres"
	"github.com/opentrusty/transparencia/internal/tenant"
)

// actorCLI identifies changes made from the command line
const actorCLI = "system:cli"

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first superadmin from SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd.Context())
		},
	}
}

func newSeedDemoCmd() *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Fill an empty municipality with sample records",
		Long: `Insert sample budgets, expenditures, projects, contracts and suppliers
for the municipality identified by --tenant. Municipalities that already hold
records are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedDemo(cmd.Context(), slug)
		},
	}

	cmd.Flags().StringVar(&slug, "tenant", "", "Municipality slug (required)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runMigrate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("Migration successful.")
	return nil
}

func runBootstrap(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bootstrap.AdminEmail == "" {
		return errors.New("SUPERADMIN_EMAIL is not set")
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	identityService := newIdentityService(cfg, postgres.NewUserRepository(db), newAuditLogger(db))
	created, err := identity.NewBootstrapService(identityService, identity.BootstrapConfig{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		FullName: cfg.Bootstrap.AdminName,
	}).Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Superadmin %s created.\n", cfg.Bootstrap.AdminEmail)
	} else {
		fmt.Println("A superadmin already exists; nothing to do.")
	}
	return nil
}

func runSeedDemo(ctx context.Context, slug string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	auditLogger := newAuditLogger(db)
	tenants := tenant.NewService(postgres.NewTenantRepository(db), nil, nil, auditLogger)
	t, err := tenants.GetTenantBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("municipality %q: %w", slug, err)
	}

	res, err := demo.NewSeeder(postgres.NewRecordsRepository(db), auditLogger).Seed(ctx, t.ID, actorCLI)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %s: %+v\n", t.Slug, *res)
	return nil
}
