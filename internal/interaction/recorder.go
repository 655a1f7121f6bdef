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

package interaction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opentrusty/transparencia/internal/id"
	"github.com/opentrusty/transparencia/internal/observability/logger"
)

// Recorder persists an interaction. Implementations never return errors to
// the caller; failures are logged.
type Recorder interface {
	Record(ctx context.Context, in Interaction)
}

// AsyncRecorder writes interactions on a background goroutine with its own
// deadline, detached from the request's cancellation.
type AsyncRecorder struct {
	repo    Repository
	timeout time.Duration
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncRecorder creates a recorder bounded by timeout per write
func NewAsyncRecorder(repo Repository, timeout time.Duration) *AsyncRecorder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncRecorder{repo: repo, timeout: timeout}
}

// Record schedules in for persistence and returns immediately
func (r *AsyncRecorder) Record(ctx context.Context, in Interaction) {
	if in.ID == "" {
		in.ID = id.NewUUIDv7()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		slog.WarnContext(ctx, "interaction dropped: recorder closed",
			logger.Component("interaction"),
			logger.TenantID(in.TenantID),
		)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.repo.Insert(writeCtx, &in); err != nil {
			slog.ErrorContext(writeCtx, "failed to record interaction",
				logger.Component("interaction"),
				logger.TenantID(in.TenantID),
				logger.Error(err),
			)
		}
	}()
}

// Close stops accepting interactions and waits for pending writes or ctx
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
