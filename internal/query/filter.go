// Package query builds store-agnostic predicates and page windows from the
// loose key/value parameters of list endpoints.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"transfer-hub/internal/errors"
)

// Values holds the raw list parameters, one value per key.
type Values map[string]string

// FromURL keeps the first non-blank value of every key.
func FromURL(v url.Values) Values {
	out := make(Values, len(v))
	for key, vals := range v {
		for _, val := range vals {
			if val = strings.TrimSpace(val); val != "" {
				out[key] = val
				break
			}
		}
	}
	return out
}

func (v Values) lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	val, ok := v[key]
	if !ok || strings.TrimSpace(val) == "" {
		return "", false
	}
	return strings.TrimSpace(val), true
}

type Operator string

const (
	OpEq       Operator = "eq"
	OpContains Operator = "contains"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
)

// Condition compares one field, optionally on a related resource, with a value.
type Condition struct {
	Relation string
	Field    string
	Op       Operator
	Value    any
}

// Predicate matches records satisfying every condition in All and, when Any
// is not empty, at least one condition in Any.
type Predicate struct {
	All []Condition
	Any []Condition
}

func (p Predicate) IsEmpty() bool {
	return len(p.All) == 0 && len(p.Any) == 0
}

type RelationFilter struct {
	Relation  string
	Field     string
	FilterKey string
	Operator  Operator
}

// NumericFilter turns MinKey/MaxKey into an inclusive range on Field.
type NumericFilter struct {
	Field  string
	MinKey string
	MaxKey string
}

type RelationSearch struct {
	Relation string
	Fields   []string
}

type SearchConfig struct {
	SearchKey            string
	SearchFields         []string
	RelationSearchFields []RelationSearch
}

// FilterConfig is the safelist of parameters a resource turns into conditions.
// Parameters it does not declare are ignored.
type FilterConfig struct {
	AllowedFilters  []string
	RelationFilters []RelationFilter
	NumericFilters  []NumericFilter
	Search          *SearchConfig
}

// BuildPredicate converts the declared parameters found in values into a predicate.
func BuildPredicate(values Values, cfg FilterConfig) (Predicate, error) {
	var p Predicate

	for _, field := range cfg.AllowedFilters {
		if val, ok := values.lookup(field); ok {
			p.All = append(p.All, Condition{Field: field, Op: OpEq, Value: val})
		}
	}

	for _, rf := range cfg.RelationFilters {
		val, ok := values.lookup(rf.FilterKey)
		if !ok {
			continue
		}
		op := rf.Operator
		if op == "" {
			op = OpEq
		}
		p.All = append(p.All, Condition{Relation: rf.Relation, Field: rf.Field, Op: op, Value: val})
	}

	for _, nf := range cfg.NumericFilters {
		if val, ok := values.lookup(nf.MinKey); ok {
			n, err := parseInt(nf.MinKey, val)
			if err != nil {
				return Predicate{}, err
			}
			p.All = append(p.All, Condition{Field: nf.Field, Op: OpGte, Value: n})
		}
		if val, ok := values.lookup(nf.MaxKey); ok {
			n, err := parseInt(nf.MaxKey, val)
			if err != nil {
				return Predicate{}, err
			}
			p.All = append(p.All, Condition{Field: nf.Field, Op: OpLte, Value: n})
		}
	}

	if s := cfg.Search; s != nil {
		if term, ok := values.lookup(s.SearchKey); ok {
			for _, field := range s.SearchFields {
				p.Any = append(p.Any, Condition{Field: field, Op: OpContains, Value: term})
			}
			for _, rs := range s.RelationSearchFields {
				for _, field := range rs.Fields {
					p.Any = append(p.Any, Condition{Relation: rs.Relation, Field: field, Op: OpContains, Value: term})
				}
			}
		}
	}

	return p, nil
}

func parseInt(key, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewAppErrorf(errors.ValidationError, "%s must be an integer", key).WithDetails(err.Error())
	}
	return n, nil
}

// Get returns the trimmed value of key and whether it was set to a non-blank value.
func (v Values) Get(key string) (string, bool) {
	return v.lookup(key)
}
