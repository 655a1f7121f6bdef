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

package version

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opentrusty/transparencia/internal/audit"
	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/tenant"
)

// DefaultCheckTTL bounds how long a rollback check stays usable
const DefaultCheckTTL = 30 * time.Minute

// TenantStore reads tenants and drops cached copies after their version
// changes
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	RefreshTenant(ctx context.Context, id string)
}

// Service provides version rollout business logic
type Service struct {
	repo        Repository
	tenants     TenantStore
	auditLogger audit.Logger
	checkTTL    time.Duration
	now         func() time.Time
}

// NewService creates a new version service
func NewService(repo Repository, tenants TenantStore, auditLogger audit.Logger, checkTTL time.Duration) *Service {
	if checkTTL <= 0 {
		checkTTL = DefaultCheckTTL
	}
	return &Service{
		repo:        repo,
		tenants:     tenants,
		auditLogger: auditLogger,
		checkTTL:    checkTTL,
		now:         time.Now,
	}
}

// CreateInput describes a new release
type CreateInput struct {
	Version      string `json:"version"`
	Status       string `json:"status"`
	ReleaseNotes string `json:"release_notes"`
}

// AssignResult reports the outcome of assigning a version to one tenant
type AssignResult struct {
	TenantID    string `json:"tenant_id"`
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`
	Downgrade   bool   `json:"downgrade"`
	Warning     string `json:"warning,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Current is the version a tenant runs
type Current struct {
	TenantID string           `json:"tenant_id"`
	Version  string           `json:"version"`
	Release  *SoftwareVersion `json:"release,omitempty"`
}

// List returns the catalogue, newest release first
func (s *Service) List(ctx context.Context) ([]*SoftwareVersion, error) {
	versions, err := s.repo.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool { return Compare(versions[i].Version, versions[j].Version) > 0 })
	return versions, nil
}

// Create publishes a release in the catalogue
func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*SoftwareVersion, error) {
	v, err := Normalize(in.Version)
	if err != nil {
		return nil, err
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = StatusStable
	}
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	if _, err := s.repo.GetVersion(ctx, v); err == nil {
		return nil, ErrVersionExists
	} else if !errors.Is(err, ErrVersionNotFound) {
		return nil, err
	}

	release := &SoftwareVersion{
		Version:      v,
		Status:       status,
		ReleaseNotes: strings.TrimSpace(in.ReleaseNotes),
		ReleasedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateVersion(ctx, release); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeVersionCreated,
		ActorID:  actorID,
		Resource: v,
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"status": status},
	})
	return release, nil
}

// LatestStable returns the highest stable release
func (s *Service) LatestStable(ctx context.Context) (*SoftwareVersion, error) {
	versions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Status == StatusStable {
			return v, nil
		}
	}
	return nil, ErrNoStableVersion
}

// CurrentVersion returns the version tenantID runs with its catalogue entry
// when one exists
func (s *Service) CurrentVersion(ctx context.Context, tenantID string) (*Current, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := &Current{TenantID: t.ID, Version: t.SoftwareVersion}
	if t.SoftwareVersion == "" {
		return out, nil
	}
	release, err := s.repo.GetVersion(ctx, t.SoftwareVersion)
	switch {
	case err == nil:
		out.Release = release
	case !errors.Is(err, ErrVersionNotFound):
		return nil, err
	}
	return out, nil
}

// History lists version changes, newest first. An empty tenantID lists the
// whole platform.
func (s *Service) History(ctx context.Context, tenantID string, limit int) ([]*History, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListHistory(ctx, tenantID, limit)
}

// AssignVersion moves tenantID to target. Downgrades are allowed and flagged.
func (s *Service) AssignVersion(ctx context.Context, tenantID, target, actorID, notes string) (*AssignResult, error) {
	v, err := Normalize(target)
	if err != nil {
		return nil, err
	}
	release, err := s.repo.GetVersion(ctx, v)
	if err != nil {
		return nil, err
	}
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.SoftwareVersion == v {
		return nil, ErrSameVersion
	}

	res := &AssignResult{TenantID: t.ID, FromVersion: t.SoftwareVersion, ToVersion: v}
	if t.SoftwareVersion != "" && Compare(v, t.SoftwareVersion) < 0 {
		res.Downgrade = true
		res.Warning = fmt.Sprintf("downgrade from %s to %s", t.SoftwareVersion, v)
	}
	if release.Status == StatusDeprecated {
		res.Warning = strings.TrimPrefix(res.Warning+"; target version is deprecated", "; ")
	}

	if _, err := s.apply(ctx, t, v, ActionAssign, actorID, notes, false); err != nil {
		return nil, err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeVersionAssigned,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: v,
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"from": res.FromVersion, "to": v, "downgrade": res.Downgrade},
	})
	if res.Downgrade {
		slog.WarnContext(ctx, "tenant version downgraded",
			logger.Component("version"),
			logger.TenantID(t.ID),
			logger.Version(v),
			logger.String("from_version", res.FromVersion),
		)
	}
	return res, nil
}

// AssignVersions assigns target to every tenant in tenantIDs and reports
// per tenant. A failure on one tenant does not stop the others.
func (s *Service) AssignVersions(ctx context.Context, tenantIDs []string, target, actorID, notes string) []AssignResult {
	out := make([]AssignResult, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		res, err := s.AssignVersion(ctx, tenantID, target, actorID, notes)
		if err != nil {
			out = append(out, AssignResult{TenantID: tenantID, ToVersion: target, Error: err.Error()})
			continue
		}
		out = append(out, *res)
	}
	return out
}

// ValidateRollback checks whether tenantID can return to the version it ran
// before its latest change, and stores the result as the tenant's current
// rollback check.
func (s *Service) ValidateRollback(ctx context.Context, tenantID, actorID string) (*RollbackCheck, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	check := &RollbackCheck{
		TenantID:       t.ID,
		CurrentVersion: t.SoftwareVersion,
		Risks:          []string{},
		CheckedBy:      actorID,
		CheckedAt:      s.now().UTC(),
	}

	history, err := s.repo.ListHistory(ctx, t.ID, 1)
	if err != nil {
		return nil, err
	}
	switch {
	case len(history) == 0:
		check.Risks = append(check.Risks, "no version history for this tenant")
	case history[0].FromVersion == "":
		check.Risks = append(check.Risks, "no previous version recorded")
	default:
		s.assessTarget(ctx, check, history[0])
	}

	if err := s.repo.SaveRollbackCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("failed to save rollback check: %w", err)
	}
	result := audit.ResultSuccess
	if !check.Feasible {
		result = audit.ResultFailure
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRollbackValidated,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: check.TargetVersion,
		Result:   result,
		Metadata: map[string]any{"current": check.CurrentVersion, "target": check.TargetVersion, "risks": len(check.Risks)},
	})
	return check, nil
}

func (s *Service) assessTarget(ctx context.Context, check *RollbackCheck, last *History) {
	check.TargetVersion = last.FromVersion
	if last.ToVersion != check.CurrentVersion {
		check.Risks = append(check.Risks, fmt.Sprintf("tenant runs %s but the last recorded change was to %s", check.CurrentVersion, last.ToVersion))
		return
	}
	release, err := s.repo.GetVersion(ctx, last.FromVersion)
	if err != nil {
		check.Risks = append(check.Risks, fmt.Sprintf("version %s is no longer available", last.FromVersion))
		return
	}

	check.Feasible = true
	switch release.Status {
	case StatusDeprecated:
		check.Risks = append(check.Risks, fmt.Sprintf("version %s is deprecated", release.Version))
	case StatusBeta:
		check.Risks = append(check.Risks, fmt.Sprintf("version %s is a beta release", release.Version))
	}
	if majorOf(release.Version) != majorOf(check.CurrentVersion) {
		check.Risks = append(check.Risks, fmt.Sprintf("rollback crosses a major version (%s to %s)", check.CurrentVersion, release.Version))
	}
}

// Rollback returns tenantID to the target of its latest feasible rollback
// check. The check must be unconsumed, younger than the check TTL and still
// describe the version the tenant runs.
func (s *Service) Rollback(ctx context.Context, tenantID, actorID, notes string) (*History, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	check, err := s.repo.GetRollbackCheck(ctx, t.ID)
	if err != nil {
		if errors.Is(err, ErrCheckNotFound) {
			return nil, ErrRollbackNotValidated
		}
		return nil, err
	}
	now := s.now().UTC()
	if !check.Feasible || check.ConsumedAt != nil ||
		now.Sub(check.CheckedAt) > s.checkTTL ||
		check.CurrentVersion != t.SoftwareVersion {
		return nil, ErrRollbackNotValidated
	}

	h, err := s.apply(ctx, t, check.TargetVersion, ActionRollback, actorID, notes, true)
	if err != nil {
		return nil, err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRollbackPerformed,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: check.TargetVersion,
		Result:   audit.ResultSuccess,
		Metadata: map[string]any{"from": check.CurrentVersion, "to": check.TargetVersion},
	})
	return h, nil
}

// apply moves the tenant to version to and appends the history row as one
// change. consumeCheck spends the tenant's rollback check with it.
func (s *Service) apply(ctx context.Context, t *tenant.Tenant, to, action, actorID, notes string, consumeCheck bool) (*History, error) {
	h := &History{
		ID:          id.NewUUIDv7(),
		TenantID:    t.ID,
		FromVersion: t.SoftwareVersion,
		ToVersion:   to,
		Action:      action,
		ActorID:     actorID,
		Notes:       strings.TrimSpace(notes),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.ApplyChange(ctx, h, consumeCheck); err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrRollbackNotValidated) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply version change: %w", err)
	}
	s.tenants.RefreshTenant(ctx, t.ID)
	return h, nil
}
