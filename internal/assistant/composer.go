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
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/opentrusty/transparencia/internal/llm"
	"github.com/opentrusty/transparencia/internal/records"
)

var supportedLocales = []language.Tag{
	language.MustParse("es-CL"),
	language.Spanish,
	language.English,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// ResolveLocale picks the best supported locale for an Accept-Language
// header, falling back to fallback.
func ResolveLocale(acceptLanguage, fallback string) language.Tag {
	def, err := language.Parse(fallback)
	if err != nil {
		def = supportedLocales[0]
	}
	if strings.TrimSpace(acceptLanguage) == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return def
	}
	return supportedLocales[idx]
}

func isEnglish(tag language.Tag) bool {
	base, _ := tag.Base()
	return base.String() == "en"
}

// NoDataMessage is the fixed reply when no public data grounds a question
func NoDataMessage(tag language.Tag) string {
	if isEnglish(tag) {
		return "I could not find public data to answer your question. Try rephrasing it or asking about budgets, expenditures, projects or contracts."
	}
	return "No encontré datos públicos para responder tu pregunta. Intenta reformularla o consulta sobre presupuestos, gastos, proyectos o contratos."
}

// Grounding is the public data an answer may draw on
type Grounding struct {
	Rows  map[string][]records.Record
	Stats *records.Stats
}

// Empty reports whether there is nothing to answer from
func (g *Grounding) Empty() bool {
	if g.Stats != nil {
		return false
	}
	for _, rows := range g.Rows {
		if len(rows) > 0 {
			return false
		}
	}
	return true
}

// Consulted returns the categories that produced rows or stats
func (g *Grounding) Consulted() []string {
	var out []string
	for _, cat := range []string{CategoryBudgets, CategoryExpenditures, CategoryProjects, CategoryContracts} {
		if len(g.Rows[cat]) > 0 {
			out = append(out, cat)
		}
	}
	if g.Stats != nil {
		out = append(out, CategoryGeneralStats)
	}
	return out
}

// fetchGrounding loads every requested category concurrently through the
// public reader. The first failure cancels the others.
func fetchGrounding(ctx context.Context, reader *records.PublicReader, tenantID string, cls *Classification) (*Grounding, error) {
	g, gctx := errgroup.WithContext(ctx)

	var cats []string
	for _, c := range cls.Categories {
		if _, ok := categoryKinds[c]; ok {
			cats = append(cats, c)
		}
	}
	results := make([][]records.Record, len(cats))
	for i, cat := range cats {
		g.Go(func() error {
			rows, err := reader.ListPublic(gctx, categoryKinds[cat], tenantID, cls.Filters, records.Page{Limit: reader.MaxRows()})
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}

	var stats *records.Stats
	if cls.WantsStats() {
		g.Go(func() error {
			s, err := reader.Stats(gctx, tenantID, cls.Filters)
			if err != nil {
				return err
			}
			stats = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Grounding{Rows: make(map[string][]records.Record, len(cats)), Stats: stats}
	for i, cat := range cats {
		out.Rows[cat] = results[i]
	}
	return out, nil
}

const answerRulesES = `Eres el asistente de transparencia de %s.
Reglas estrictas:
1. Responde ÚNICAMENTE con la información de los DATOS entregados. No inventes cifras, nombres ni fechas.
2. Si los datos no alcanzan para responder, dilo explícitamente.
3. Indica qué categoría de datos consultaste (por ejemplo: presupuestos, gastos, proyectos, contratos o estadísticas generales).
4. Responde en español de Chile: montos en pesos chilenos con separador de miles (ejemplo: $150.000.000) y fechas en formato DD-MM-AAAA.
5. Sé claro y breve.`

const answerRulesEN = `You are the transparency assistant of %s.
Strict rules:
1. Answer ONLY from the DATA provided. Never invent figures, names or dates.
2. If the data is not enough to answer, say so explicitly.
3. State which data category you consulted (budgets, expenditures, projects, contracts or general statistics).
4. Answer in English: amounts in Chilean pesos with thousands separators (example: CLP 150,000,000) and dates as YYYY-MM-DD.
5. Be clear and brief.`

// composePrompt embeds the grounding rows as JSON under strict answering
// rules.
func composePrompt(tenantName, question string, history []llm.Message, cls *Classification, g *Grounding, tag language.Tag) ([]llm.Message, error) {
	rules := answerRulesES
	if isEnglish(tag) {
		rules = answerRulesEN
	}

	var data strings.Builder
	if cls.Intent != "" {
		fmt.Fprintf(&data, "Intención: %s\n", cls.Intent)
	}
	if f := cls.Filters.Map(); len(f) > 0 {
		b, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&data, "Filtros aplicados: %s\n", b)
	}
	for _, cat := range g.Consulted() {
		if cat == CategoryGeneralStats {
			continue
		}
		b, err := json.Marshal(g.Rows[cat])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", cat, err)
		}
		fmt.Fprintf(&data, "\n### %s (%d registros)\n%s\n", cat, len(g.Rows[cat]), b)
	}
	if g.Stats != nil {
		data.WriteString("\n### general_stats\n")
		data.WriteString(formatStats(g.Stats, tag))
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: fmt.Sprintf(rules, tenantName)}}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("DATOS:\n%s\nPREGUNTA: %s", data.String(), question),
	})
	return messages, nil
}

// formatStats renders the aggregates with locale digit grouping
func formatStats(s *records.Stats, tag language.Tag) string {
	p := message.NewPrinter(tag)
	var b strings.Builder
	p.Fprintf(&b, "- presupuesto planificado total: $%d\n", s.PlannedBudget)
	p.Fprintf(&b, "- presupuesto ejecutado total: $%d\n", s.ExecutedBudget)
	p.Fprintf(&b, "- gasto total: $%d\n", s.TotalExpenditure)
	p.Fprintf(&b, "- proyectos: %d (en progreso: %d)\n", s.ProjectCount, s.ActiveProjects)
	p.Fprintf(&b, "- contratos: %d (vigentes: %d)\n", s.ContractCount, s.ActiveContracts)
	return b.String()
}
