package formengine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IsVisible reports whether the field at p and all of its enclosing groups
// are visible under the current answers.
func (s *Store) IsVisible(p Path) bool {
	if _, ok := s.schema.FindField(p); !ok {
		return false
	}
	for i := 1; i <= len(p); i++ {
		prefix := p[:i].At(NoIndex)
		info := s.schema.fields[prefix.Last()]
		if !s.conditionsHold(info.field, prefix) {
			return false
		}
	}
	return true
}

// conditionsHold evaluates the field's own conditions, with references
// resolved in the repeat instance ctx belongs to.
func (s *Store) conditionsHold(f *Field, ctx Path) bool {
	for i := range f.Conditions {
		if !s.evalCondition(&f.Conditions[i], ctx) {
			return false
		}
	}
	if f.VisibleWhen != nil {
		return s.evalExpr(f.VisibleWhen, ctx)
	}
	return true
}

func (s *Store) evalExpr(e *Expr, ctx Path) bool {
	switch {
	case e.Condition != nil:
		return s.evalCondition(e.Condition, ctx)
	case e.Not != nil:
		return !s.evalExpr(e.Not, ctx)
	case len(e.All) > 0:
		for _, sub := range e.All {
			if !s.evalExpr(sub, ctx) {
				return false
			}
		}
		return true
	case len(e.Any) > 0:
		for _, sub := range e.Any {
			if s.evalExpr(sub, ctx) {
				return true
			}
		}
		return false
	}
	return true
}

// evalCondition returns the visibility contributed by c: the comparison
// result for show, its negation for hide.
func (s *Store) evalCondition(c *Condition, ctx Path) bool {
	var actual any
	if ref, ok := s.schema.resolveRef(c.Field, ctx); ok {
		actual = s.value(ref)
	}
	holds := Compare(c.Operator, actual, c.Value)
	if c.Action == ActionHide {
		return !holds
	}
	return holds
}

// Compare applies a condition operator to a stored value and a literal.
// Equality is numeric when both sides are numbers and textual otherwise; a
// multiselect value equals a literal it contains. Ordering is numeric only
// and is false whenever either side is not a number. Unknown operators
// compare false.
func Compare(op Operator, actual, literal any) bool {
	switch operatorAliases[op] {
	case OpEquals:
		return equal(actual, literal)
	case OpNotEquals:
		return !equal(actual, literal)
	case OpGreater, OpLess:
		if _, isList := actual.([]string); isList {
			return false
		}
		a, ok := toFloat(actual)
		if !ok {
			return false
		}
		b, ok := toFloat(literal)
		if !ok {
			return false
		}
		if operatorAliases[op] == OpGreater {
			return a > b
		}
		return a < b
	}
	return false
}

func equal(actual, literal any) bool {
	if actual == nil || literal == nil {
		return actual == nil && literal == nil
	}
	switch t := actual.(type) {
	case []string:
		for _, v := range t {
			if equal(v, literal) {
				return true
			}
		}
		return false
	case []any:
		for _, v := range t {
			if equal(v, literal) {
				return true
			}
		}
		return false
	}
	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(literal); ok {
			return a == b
		}
	}
	return formatScalar(actual) == formatScalar(literal)
}

// toFloat coerces numbers and numeric strings to float64.
func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// formatScalar renders a scalar the way it travels on the wire and keys
// nestedOptions.
func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}
