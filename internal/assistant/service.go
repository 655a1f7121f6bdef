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

// Package assistant answers citizen questions from a municipality's public
// records: classify the question, fetch grounding rows, compose a prompt and
// stream the model's answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"

	"github.com/opentrusty/transparencia/internal/interaction"
	"github.com/opentrusty/transparencia/internal/llm"
	"github.com/opentrusty/transparencia/internal/observability/logger"
	"github.com/opentrusty/transparencia/internal/observability/metrics"
	"github.com/opentrusty/transparencia/internal/observability/tracing"
	"github.com/opentrusty/transparencia/internal/records"
)

var (
	// ErrUpstreamUnavailable means the model failed before producing output
	ErrUpstreamUnavailable = errors.New("answer service unavailable")
	// ErrStreamInterrupted means the answer broke off after output started
	ErrStreamInterrupted = errors.New("answer stream interrupted")
	// ErrEmptyQuestion is returned for blank questions
	ErrEmptyQuestion = errors.New("question is required")
)

// MaxQuestionChars bounds the accepted question length
const MaxQuestionChars = 2000

// Emitter delivers the outcome of a question to the caller. NoData is
// called at most once and excludes the streaming methods.
type Emitter interface {
	NoData(message string) error
	Chunk(text string) error
	Done() error
}

// Query is one citizen question
type Query struct {
	TenantID   string
	TenantName string
	Question   string
	History    []Turn
	// AcceptLanguage is the raw header used to pick the answer locale
	AcceptLanguage string
}

// Config tunes the pipeline
type Config struct {
	AnswerTemperature float64
	MaxHistoryTurns   int
	DefaultLocale     string
}

// Service runs the question pipeline
type Service struct {
	classifier *Classifier
	reader     *records.PublicReader
	provider   llm.Provider
	recorder   interaction.Recorder
	tracer     *tracing.Tracer
	metrics    *metrics.AssistantMetrics
	cfg        Config
	now        func() time.Time
}

// NewService wires the pipeline. tracer and m may be nil.
func NewService(
	classifier *Classifier,
	reader *records.PublicReader,
	provider llm.Provider,
	recorder interaction.Recorder,
	tracer *tracing.Tracer,
	m *metrics.AssistantMetrics,
	cfg Config,
) *Service {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Service{
		classifier: classifier,
		reader:     reader,
		provider:   provider,
		recorder:   recorder,
		tracer:     tracer,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Ask answers q through emit. Errors returned before emit received any
// output leave the response unwritten for the caller to report.
func (s *Service) Ask(ctx context.Context, q Query, emit Emitter) (err error) {
	start := s.now()
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return ErrEmptyQuestion
	}
	if len([]rune(question)) > MaxQuestionChars {
		question = string([]rune(question)[:MaxQuestionChars])
	}

	ctx, span := s.tracer.StartSpan(ctx, "assistant.ask", q.TenantID)
	defer func() { tracing.EndSpan(span, err) }()

	outcome := metrics.OutcomeAnswered
	defer func() {
		s.metrics.Observe(ctx, q.TenantID, outcome, s.now().Sub(start))
	}()

	cls, err := s.classify(ctx, q.TenantID, question, q.History)
	if err != nil {
		outcome = metrics.OutcomeClassificationFailed
		slog.WarnContext(ctx, "question classification failed",
			logger.Component("assistant"),
			logger.TenantID(q.TenantID),
			logger.Error(err),
		)
		return err
	}

	grounding, err := s.ground(ctx, q.TenantID, cls)
	if err != nil {
		outcome = metrics.OutcomeUpstreamUnavailable
		slog.ErrorContext(ctx, "failed to load grounding data",
			logger.Component("assistant"),
			logger.TenantID(q.TenantID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	tag := ResolveLocale(q.AcceptLanguage, s.cfg.DefaultLocale)

	if grounding.Empty() {
		outcome = metrics.OutcomeNoData
		msg := NoDataMessage(tag)
		if err := emit.NoData(msg); err != nil {
			return err
		}
		s.record(ctx, q.TenantID, question, msg, cls, grounding, start)
		return nil
	}

	answer, err := s.answer(ctx, q, question, cls, grounding, tag, emit)
	if err != nil {
		if errors.Is(err, ErrStreamInterrupted) {
			outcome = metrics.OutcomeInterrupted
		} else {
			outcome = metrics.OutcomeUpstreamUnavailable
		}
		slog.WarnContext(ctx, "answer generation failed",
			logger.Component("assistant"),
			logger.TenantID(q.TenantID),
			logger.Error(err),
		)
		return err
	}

	s.record(ctx, q.TenantID, question, answer, cls, grounding, start)
	return nil
}

func (s *Service) classify(ctx context.Context, tenantID, question string, history []Turn) (cls *Classification, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "assistant.classify", tenantID)
	defer func() { tracing.EndSpan(span, err) }()

	cls, err = s.classifier.Classify(ctx, question, history)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.StringSlice("assistant.categories", cls.Categories),
		attribute.String("assistant.intent", cls.Intent),
	)
	return cls, nil
}

func (s *Service) ground(ctx context.Context, tenantID string, cls *Classification) (g *Grounding, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "assistant.fetch", tenantID)
	defer func() { tracing.EndSpan(span, err) }()

	g, err = fetchGrounding(ctx, s.reader, tenantID, cls)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("assistant.has_data", !g.Empty()))
	return g, nil
}

// answer streams the model's reply to emit and returns the full text
func (s *Service) answer(ctx context.Context, q Query, question string, cls *Classification, g *Grounding, tag language.Tag, emit Emitter) (text string, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "assistant.compose", q.TenantID)
	defer func() { tracing.EndSpan(span, err) }()

	messages, err := composePrompt(q.TenantName, question, historyMessages(q.History, s.cfg.MaxHistoryTurns), cls, g, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	stream, err := s.provider.Stream(ctx, llm.Request{Messages: messages, Temperature: s.cfg.AnswerTemperature})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer stream.Close()

	var sb strings.Builder
	started := false
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !started {
				return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
			}
			return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
		}
		if err := emit.Chunk(chunk); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
		}
		started = true
		sb.WriteString(chunk)
	}

	if err := emit.Done(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}
	return sb.String(), nil
}

func (s *Service) record(ctx context.Context, tenantID, question, answer string, cls *Classification, g *Grounding, start time.Time) {
	hasData := !g.Empty()
	s.recorder.Record(ctx, interaction.Interaction{
		TenantID:  tenantID,
		Question:  question,
		Answer:    answer,
		Intent:    cls.Intent,
		Category:  strings.Join(cls.Categories, ","),
		HasData:   hasData,
		Filters:   cls.Filters.Map(),
		LatencyMS: s.now().Sub(start).Milliseconds(),
	})
	slog.InfoContext(ctx, "question answered",
		logger.Component("assistant"),
		logger.TenantID(tenantID),
		logger.Intent(cls.Intent),
		logger.Categories(cls.Categories),
		logger.HasData(hasData),
	)
}
