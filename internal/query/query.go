// Copyright 2025 The Aimee Authors
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

// Package query translates normalized filter clauses into
// platform-specific query syntax.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator names accepted in filter clauses.
const (
	OpEquals         = "equals"
	OpNotEquals      = "not_equals"
	OpContains       = "contains"
	OpNotContains    = "not_contains"
	OpGreaterThan    = "greater_than"
	OpLessThan       = "less_than"
	OpGreaterOrEqual = "greater_or_equal"
	OpLessOrEqual    = "less_or_equal"
	OpIsEmpty        = "is_empty"
	OpIsNotEmpty     = "is_not_empty"
)

// Clause is one normalized filter condition.
type Clause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

// needsValue reports whether the operator takes a right-hand side.
func needsValue(op string) bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}

// ParseClauses converts a decoded JSON "filters" value into clauses.
// Workflow step configs arrive as []any of map[string]any; anything
// else yields no clauses. Numeric values keep their unquoted rendering
// downstream because clauseValue prints them as plain numbers.
func ParseClauses(v any) []Clause {
	switch list := v.(type) {
	case []Clause:
		return list
	case []any:
		clauses := make([]Clause, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			c := Clause{}
			c.Field, _ = m["field"].(string)
			c.Operator, _ = m["operator"].(string)
			c.Value = clauseValue(m["value"])
			clauses = append(clauses, c)
		}
		return clauses
	default:
		return nil
	}
}

// clauseValue renders a decoded JSON value as a clause right-hand side.
func clauseValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AirtableFormula renders clauses as an Airtable filterByFormula
// expression. Every clause is AND-ed; numeric-looking values are
// emitted unquoted, everything else single-quoted. Clauses with an
// unknown operator, or a missing value where one is needed, are
// skipped. The second return is false when no usable clause remained —
// the caller sees an explicit "no filter" rather than an empty formula.
func AirtableFormula(clauses []Clause) (string, bool) {
	var terms []string

	for _, c := range clauses {
		term, ok := airtableTerm(c)
		if !ok {
			continue
		}
		terms = append(terms, term)
	}

	switch len(terms) {
	case 0:
		return "", false
	case 1:
		return terms[0], true
	default:
		return "AND(" + strings.Join(terms, ",") + ")", true
	}
}

func airtableTerm(c Clause) (string, bool) {
	if c.Field == "" {
		return "", false
	}
	field := "{" + c.Field + "}"

	if needsValue(c.Operator) && c.Value == "" {
		return "", false
	}
	value := airtableValue(c.Value)

	switch c.Operator {
	case OpEquals:
		return field + "=" + value, true
	case OpNotEquals:
		return field + "!=" + value, true
	case OpContains:
		return fmt.Sprintf("FIND(%s,%s)>0", value, field), true
	case OpNotContains:
		return fmt.Sprintf("FIND(%s,%s)=0", value, field), true
	case OpGreaterThan:
		return field + ">" + value, true
	case OpLessThan:
		return field + "<" + value, true
	case OpGreaterOrEqual:
		return field + ">=" + value, true
	case OpLessOrEqual:
		return field + "<=" + value, true
	case OpIsEmpty:
		return field + "=BLANK()", true
	case OpIsNotEmpty:
		return field + "!=BLANK()", true
	default:
		return "", false
	}
}

// airtableValue quotes a value unless it parses as a number.
func airtableValue(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

// RESTParams renders clauses as field[operator]=value query parameters
// for platforms with bracketed REST filters. No-value operators emit an
// empty value; unusable clauses are skipped.
func RESTParams(clauses []Clause) map[string]string {
	params := make(map[string]string)

	for _, c := range clauses {
		if c.Field == "" || c.Operator == "" {
			continue
		}
		if needsValue(c.Operator) && c.Value == "" {
			continue
		}
		params[fmt.Sprintf("%s[%s]", c.Field, c.Operator)] = c.Value
	}

	return params
}
