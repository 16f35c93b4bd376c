package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

// resource maps list field names onto SQL expressions. Only mapped fields can
// be filtered or sorted on, which keeps caller input out of the query text.
type resource struct {
	columns   map[string]string
	relations map[string]map[string]string
	// tieBreaker keeps paging stable when the sort column has duplicates.
	tieBreaker string
}

func (r resource) column(relation, field string) (string, error) {
	cols := r.columns
	if relation != "" {
		cols = r.relations[relation]
	}
	expr, ok := cols[field]
	if !ok {
		name := field
		if relation != "" {
			name = relation + "." + field
		}
		return "", errors.NewAppErrorf(errors.ValidationError, "unknown filter field %q", name)
	}
	return expr, nil
}

// where renders p as a WHERE clause using ? placeholders.
func (r resource) where(p query.Predicate) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	for _, c := range p.All {
		clause, arg, err := r.condition(c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if len(p.Any) > 0 {
		var alternatives []string
		for _, c := range p.Any {
			clause, arg, err := r.condition(c)
			if err != nil {
				return "", nil, err
			}
			alternatives = append(alternatives, clause)
			args = append(args, arg)
		}
		clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (r resource) condition(c query.Condition) (string, any, error) {
	expr, err := r.column(c.Relation, c.Field)
	if err != nil {
		return "", nil, err
	}

	switch c.Op {
	case query.OpEq:
		return expr + " = ?", c.Value, nil
	case query.OpContains:
		return "CAST(" + expr + " AS TEXT) ILIKE ?", "%" + escapeLike(fmt.Sprint(c.Value)) + "%", nil
	case query.OpGte:
		return expr + " >= ?", c.Value, nil
	case query.OpLte:
		return expr + " <= ?", c.Value, nil
	default:
		return "", nil, errors.NewAppErrorf(errors.ValidationError, "unsupported operator %q", c.Op)
	}
}

func (r resource) orderBy(ob query.OrderBy) (string, error) {
	expr, err := r.column("", ob.Field)
	if err != nil {
		return "", errors.NewAppErrorf(errors.ValidationError, "cannot sort by %q", ob.Field)
	}
	dir := "ASC"
	if ob.Direction == query.Desc {
		dir = "DESC"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", expr, dir)
	if r.tieBreaker != "" {
		clause += ", " + r.tieBreaker + " " + dir
	}
	return clause, nil
}

// selectWindow appends the filter, ordering and window to base and rebinds
// the placeholders for the postgres driver.
func (r resource) selectWindow(base string, where query.Predicate, w query.Window) (string, []any, error) {
	whereSQL, args, err := r.where(where)
	if err != nil {
		return "", nil, err
	}
	orderSQL, err := r.orderBy(w.OrderBy)
	if err != nil {
		return "", nil, err
	}

	q := base + whereSQL + orderSQL + " LIMIT ? OFFSET ?"
	args = append(args, w.Limit, w.Offset)
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

func (r resource) count(base string, where query.Predicate) (string, []any, error) {
	whereSQL, args, err := r.where(where)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, base+whereSQL), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
