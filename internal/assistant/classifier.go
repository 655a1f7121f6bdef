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

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opentrusty/transparencia/internal/llm"
	"github.com/opentrusty/transparencia/internal/records"
)

// ErrClassificationFailed is returned when the model's intent output cannot
// be used. It is never retried.
var ErrClassificationFailed = errors.New("classification failed")

// Categories the classifier may select
const (
	CategoryBudgets      = "budgets"
	CategoryExpenditures = "expenditures"
	CategoryProjects     = "projects"
	CategoryContracts    = "contracts"
	CategoryGeneralStats = "general_stats"
)

var categoryKinds = map[string]records.Kind{
	CategoryBudgets:      records.KindBudgets,
	CategoryExpenditures: records.KindExpenditures,
	CategoryProjects:     records.KindProjects,
	CategoryContracts:    records.KindContracts,
}

const maxTurnChars = 500

// Turn is a prior message of the conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classification is the structured intent of a question
type Classification struct {
	Categories []string        `json:"categories"`
	Filters    records.Filters `json:"filters"`
	Intent     string          `json:"intent"`
}

// WantsStats reports whether aggregate statistics were requested
func (c *Classification) WantsStats() bool {
	for _, cat := range c.Categories {
		if cat == CategoryGeneralStats {
			return true
		}
	}
	return false
}

const classifierInstructions = `Eres un clasificador de consultas para un portal de transparencia municipal.
Analiza la pregunta del ciudadano y responde SOLO con un objeto JSON con esta forma:
{"categories": [...], "filters": {...}, "intent": "..."}

Categorías posibles:
- "budgets": presupuesto municipal por año, departamento y categoría (montos planificados y ejecutados)
- "expenditures": gastos y pagos individuales, con proveedor y fecha
- "projects": proyectos y obras, con estado (planificado, en_progreso, completado, suspendido) y ubicación
- "contracts": contratos con proveedores, con estado (vigente, finalizado, en_licitacion, anulado)
- "general_stats": totales y conteos generales del municipio

Filtros opcionales (omite los que no apliquen):
- "year": número entero, por ejemplo 2024
- "department": nombre del departamento
- "category": categoría del gasto o proyecto
- "comuna": comuna o sector
- "status": estado del proyecto o contrato

"intent" es una reformulación breve de lo que el ciudadano quiere saber.
Si la pregunta no se relaciona con datos municipales, responde con "categories": [].`

// Classifier asks the model which data a question needs
type Classifier struct {
	provider    llm.Provider
	temperature float64
	maxTurns    int
}

// NewClassifier creates a classifier that keeps the last maxTurns turns
func NewClassifier(provider llm.Provider, temperature float64, maxTurns int) *Classifier {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Classifier{provider: provider, temperature: temperature, maxTurns: maxTurns}
}

// Classify returns the categories and filters relevant to question
func (c *Classifier) Classify(ctx context.Context, question string, history []Turn) (*Classification, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: classifierInstructions}}
	messages = append(messages, historyMessages(history, c.maxTurns)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	raw, err := c.provider.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: c.temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	return ParseClassification(raw)
}

// historyMessages keeps the last n turns, each truncated to maxTurnChars
func historyMessages(history []Turn, n int) []llm.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]llm.Message, 0, len(history))
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		content := strings.TrimSpace(t.Content)
		if r := []rune(content); len(r) > maxTurnChars {
			content = string(r[:maxTurnChars])
		}
		if content == "" {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	return out
}

// ParseClassification decodes model output, tolerating a surrounding
// markdown code fence. Unknown categories and filter keys are dropped.
func ParseClassification(raw string) (*Classification, error) {
	body := stripCodeFence(raw)

	var out struct {
		Categories []any          `json:"categories"`
		Filters    map[string]any `json:"filters"`
		Intent     any            `json:"intent"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	cls := &Classification{Filters: records.FiltersFromMap(out.Filters)}
	if s, ok := out.Intent.(string); ok {
		cls.Intent = strings.TrimSpace(s)
	}

	seen := map[string]bool{}
	for _, v := range out.Categories {
		s, ok := v.(string)
		if !ok {
			continue
		}
		cat := strings.ToLower(strings.TrimSpace(s))
		if _, known := categoryKinds[cat]; !known && cat != CategoryGeneralStats {
			continue
		}
		if !seen[cat] {
			seen[cat] = true
			cls.Categories = append(cls.Categories, cat)
		}
	}
	return cls, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
