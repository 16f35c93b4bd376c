package query

import (
	"fmt"
	"strings"
	"time"
)

// Record exposes field values to in-process predicate evaluation. Relation
// is empty for the record's own fields.
type Record interface {
	Value(relation, field string) (any, bool)
}

func (p Predicate) Matches(r Record) bool {
	for _, c := range p.All {
		if !c.Matches(r) {
			return false
		}
	}
	if len(p.Any) == 0 {
		return true
	}
	for _, c := range p.Any {
		if c.Matches(r) {
			return true
		}
	}
	return false
}

func (c Condition) Matches(r Record) bool {
	got, ok := r.Value(c.Relation, c.Field)
	if !ok || got == nil {
		return false
	}

	switch c.Op {
	case OpEq:
		cmp, ok := Compare(got, c.Value)
		return ok && cmp == 0
	case OpContains:
		return strings.Contains(strings.ToLower(fmt.Sprint(got)), strings.ToLower(fmt.Sprint(c.Value)))
	case OpGte:
		cmp, ok := Compare(got, c.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := Compare(got, c.Value)
		return ok && cmp <= 0
	default:
		return false
	}
}

// Compare orders two values of the same kind. Integers compare numerically,
// times chronologically and everything else by its string form. The second
// result is false when the values are not comparable.
func Compare(a, b any) (int, bool) {
	if ai, ok := toInt64(a); ok {
		bi, ok := toInt64(b)
		if !ok {
			return 0, false
		}
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
