package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

func TestTransactionWindowSQL(t *testing.T) {
	where := query.Predicate{
		All: []query.Condition{
			{Field: "status", Op: query.OpEq, Value: "PENDING"},
			{Field: "amount", Op: query.OpGte, Value: int64(1000)},
		},
		Any: []query.Condition{
			{Field: "reference", Op: query.OpContains, Value: "50%"},
			{Relation: "channel", Field: "name", Op: query.OpContains, Value: "wave"},
		},
	}
	w := query.Window{Offset: 20, Limit: 10, OrderBy: query.OrderBy{Field: "amount", Direction: query.Desc}}

	q, args, err := transactionResource.selectWindow("SELECT 1 FROM transactions t", where, w)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT 1 FROM transactions t WHERE t.status = $1 AND t.amount >= $2 AND "+
			"(CAST(t.reference AS TEXT) ILIKE $3 OR CAST(c.name AS TEXT) ILIKE $4) "+
			"ORDER BY t.amount DESC, t.id DESC LIMIT $5 OFFSET $6",
		q)
	assert.Equal(t, []any{"PENDING", int64(1000), `%50\%%`, "%wave%", 10, 20}, args)
}

func TestCountWithoutPredicate(t *testing.T) {
	q, args, err := actionResource.count(countActions, query.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, countActions, q)
	assert.Empty(t, args)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	validation := errors.NewAppError(errors.ValidationError, "")

	_, _, err := transactionResource.count(countTransactions, query.Predicate{All: []query.Condition{
		{Field: "payee_name; DROP TABLE transactions", Op: query.OpEq, Value: "x"},
	}})
	assert.ErrorIs(t, err, validation)

	_, _, err = actionResource.selectWindow(selectActions, query.Predicate{}, query.Window{
		Limit:   10,
		OrderBy: query.OrderBy{Field: "snapshot", Direction: query.Asc},
	})
	assert.ErrorIs(t, err, validation)

	_, _, err = transactionResource.count(countTransactions, query.Predicate{All: []query.Condition{
		{Relation: "payee", Field: "name", Op: query.OpEq, Value: "x"},
	}})
	assert.ErrorIs(t, err, validation)
}
