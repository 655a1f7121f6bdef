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

package records

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Filters are the optional narrowing criteria a caller may supply. Tenant
// scope and visibility are deliberately absent; they are fixed by whoever
// builds the Query.
type Filters struct {
	Year       int    `json:"year,omitempty"`
	Department string `json:"department,omitempty"`
	Category   string `json:"category,omitempty"`
	Comuna     string `json:"comuna,omitempty"`
	Status     string `json:"status,omitempty"`
}

// FilterKeys is the allowlist of accepted filter names
var FilterKeys = []string{"year", "department", "category", "comuna", "status"}

// IsZero reports whether no filter is set
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Map returns the set filters keyed by name
func (f Filters) Map() map[string]any {
	m := map[string]any{}
	if f.Year != 0 {
		m["year"] = f.Year
	}
	for k, v := range map[string]string{
		"department": f.Department,
		"category":   f.Category,
		"comuna":     f.Comuna,
		"status":     f.Status,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// FiltersFromMap builds Filters from loosely typed input such as model
// output. Keys outside FilterKeys and values of the wrong shape are dropped.
func FiltersFromMap(m map[string]any) Filters {
	var f Filters
	for k, v := range m {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "year":
			f.Year = toYear(v)
		case "department":
			f.Department = toText(v)
		case "category":
			f.Category = toText(v)
		case "comuna":
			f.Comuna = toText(v)
		case "status":
			f.Status = strings.ToLower(toText(v))
		}
	}
	return f
}

// FiltersFromQuery builds Filters from URL query parameters
func FiltersFromQuery(v url.Values) Filters {
	m := make(map[string]any, len(FilterKeys))
	for _, k := range FilterKeys {
		if s := v.Get(k); s != "" {
			m[k] = s
		}
	}
	return FiltersFromMap(m)
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, int:
		return fmt.Sprint(t)
	}
	return ""
}

func toYear(v any) int {
	var y int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0
		}
		y = int(t)
	case int:
		y = t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		y = n
	default:
		return 0
	}
	if y < minYear || y > 9999 {
		return 0
	}
	return y
}

// Page bounds a listing
type Page struct {
	Limit  int
	Offset int
}

// Clamp applies defaults and the upper bound ceiling
func (p Page) Clamp(ceiling int) Page {
	if p.Limit <= 0 || p.Limit > ceiling {
		p.Limit = ceiling
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageFromQuery reads limit and offset parameters
func PageFromQuery(v url.Values) Page {
	limit, _ := strconv.Atoi(v.Get("limit"))
	offset, _ := strconv.Atoi(v.Get("offset"))
	return Page{Limit: limit, Offset: offset}
}

// Query is the full selection handed to a Repository. Rows come back
// ordered by created_at descending.
type Query struct {
	TenantID   string
	PublicOnly bool
	MappedOnly bool
	Filters    Filters
	Page       Page
}
