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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opentrusty/transparencia/internal/assistant"
)

// AssistantQueryRequest is a citizen question with optional prior turns
type AssistantQueryRequest struct {
	Query               string           `json:"query" binding:"required" example:"¿Cuál es el presupuesto 2024?"`
	ConversationHistory []assistant.Turn `json:"conversationHistory"`
}

// AssistantQuery answers a citizen question from public records
// @Summary Ask the transparency assistant
// @Description Streams the answer as text/event-stream. Questions without grounding data get a fixed JSON no-data reply.
// @Tags Public
// @Accept json
// @Produce json
// @Produce text/event-stream
// @Param X-Tenant-Slug header string false "Municipality slug"
// @Param request body AssistantQueryRequest true "Question"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /public/assistant/query [post]
func (h *Handler) AssistantQuery(w http.ResponseWriter, r *http.Request) {
	var req AssistantQueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t := GetTenant(r.Context())
	q := assistant.Query{
		TenantID:       t.ID,
		TenantName:     t.Name,
		Question:       req.Query,
		History:        req.ConversationHistory,
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}

	emit := newSSEEmitter(w)
	if err := h.assistant.Ask(r.Context(), q, emit); err != nil {
		if emit.started {
			emit.fail()
			return
		}
		respondDomainError(w, r, err)
	}
}

// noDataBody is the reply when no public data grounds the question
type noDataBody struct {
	Message string `json:"message"`
	NoData  bool   `json:"noData"`
}

// sseEmitter forwards answer chunks as server-sent events. Headers are
// written with the first event so that failures before any output can still
// be reported as a plain JSON error.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEEmitter(w http.ResponseWriter) *sseEmitter {
	f, _ := w.(http.Flusher)
	return &sseEmitter{w: w, flusher: f}
}

type sseDelta struct {
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

func (e *sseEmitter) NoData(message string) error {
	e.started = true
	respondJSON(e.w, http.StatusOK, noDataBody{Message: message, NoData: true})
	return nil
}

func (e *sseEmitter) Chunk(text string) error {
	e.begin()
	var c sseChoice
	c.Delta.Content = text
	b, err := json.Marshal(sseDelta{Choices: []sseChoice{c}})
	if err != nil {
		return err
	}
	return e.write("data: " + string(b) + "\n\n")
}

func (e *sseEmitter) Done() error {
	e.begin()
	return e.write("data: [DONE]\n\n")
}

// fail ends a stream that broke after output started
func (e *sseEmitter) fail() {
	_ = e.write(fmt.Sprintf("event: error\ndata: {\"error\":%q,\"code\":%q}\n\n",
		"answer stream interrupted", codeUpstreamUnavailable))
}

func (e *sseEmitter) begin() {
	if e.started {
		return
	}
	e.started = true

	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)

	// Lift the server's WriteTimeout for the rest of this response.
	rc := http.NewResponseController(e.w)
	_ = rc.SetWriteDeadline(time.Time{})
}

func (e *sseEmitter) write(frame string) error {
	if _, err := e.w.Write([]byte(frame)); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
