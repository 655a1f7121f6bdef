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

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	// The global meter provider decides where measurements are exported.
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Assistant outcome labels
const (
	OutcomeAnswered             = "answered"
	OutcomeNoData               = "no_data"
	OutcomeClassificationFailed = "classification_failed"
	OutcomeUpstreamUnavailable  = "upstream_unavailable"
	OutcomeInterrupted          = "interrupted"
)

// AssistantMetrics records the outcome and latency of citizen questions.
type AssistantMetrics struct {
	queries metric.Int64Counter
	latency metric.Float64Histogram
}

// NewAssistantMetrics registers the assistant instruments on m.
func NewAssistantMetrics(m *Meter) (*AssistantMetrics, error) {
	queries, err := m.CreateCounter("assistant.queries", "Citizen questions handled, by outcome")
	if err != nil {
		return nil, err
	}
	latency, err := m.CreateHistogram("assistant.latency", "End-to-end latency of citizen questions", "ms")
	if err != nil {
		return nil, err
	}
	return &AssistantMetrics{queries: queries, latency: latency}, nil
}

// Observe records one finished question. A nil receiver is a no-op.
func (a *AssistantMetrics) Observe(ctx context.Context, tenantID, outcome string, elapsed time.Duration) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("outcome", outcome),
	)
	a.queries.Add(ctx, 1, attrs)
	a.latency.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}
