package query

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-hub/internal/errors"
)

func intSource(n int) (Source[int], *Window) {
	var seen Window
	items := make([]int, n)
	for i := range items {
		items[i] = i + 1
	}
	return SourceFuncs[int]{
		CountFunc: func(context.Context, Predicate) (int64, error) { return int64(len(items)), nil },
		FindFunc: func(_ context.Context, _ Predicate, w Window) ([]int, error) {
			seen = w
			if w.Offset >= len(items) {
				return nil, nil
			}
			end := min(w.Offset+w.Limit, len(items))
			return items[w.Offset:end], nil
		},
	}, &seen
}

func TestPaginateFirstPage(t *testing.T) {
	src, _ := intSource(45)
	p := NewPaginator(10, 100)

	page, err := Paginate(context.Background(), p, src, PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, page.Data, 10)
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 45, TotalPages: 5}, page.Pagination)
}

func TestPaginateLastAndPastEnd(t *testing.T) {
	src, seen := intSource(45)
	p := NewPaginator(10, 100)

	page, err := Paginate(context.Background(), p, src, PageRequest{Page: 5, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int{41, 42, 43, 44, 45}, page.Data)
	assert.Equal(t, 40, seen.Offset)

	page, err = Paginate(context.Background(), p, src, PageRequest{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestPaginateClampsAndDefaults(t *testing.T) {
	src, seen := intSource(3)
	p := NewPaginator(10, 50)

	page, err := Paginate(context.Background(), p, src, PageRequest{Page: -2, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 50, page.Pagination.Limit)
	assert.Equal(t, 0, seen.Offset)
	assert.Equal(t, OrderBy{Field: DefaultSortField, Direction: Asc}, seen.OrderBy)

	page, err = Paginate(context.Background(), p, src, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestPaginateEmptyCollection(t *testing.T) {
	src, _ := intSource(0)
	page, err := Paginate(context.Background(), NewPaginator(10, 100), src, PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestBuildOrderBy(t *testing.T) {
	p := NewPaginator(10, 100)

	ob, err := p.BuildOrderBy("", "")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Field: "createdAt", Direction: Asc}, ob)

	ob, err = p.BuildOrderBy("amount", "DESC")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Field: "amount", Direction: Desc}, ob)

	_, err = p.BuildOrderBy("amount", "sideways")
	require.Error(t, err)
	assert.Equal(t, errors.ValidationError, errors.As(err).Code)
}

func TestRequestParsesValues(t *testing.T) {
	p := NewPaginator(10, 100)

	req, err := p.Request(Values{"page": "3", "limit": "25", "sortBy": "amount", "sortOrder": "desc"}, Predicate{})
	require.NoError(t, err)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 25, req.Limit)
	assert.Equal(t, OrderBy{Field: "amount", Direction: Desc}, req.OrderBy)

	req, err = p.Request(Values{"page": "0"}, Predicate{})
	require.NoError(t, err)
	assert.Equal(t, 1, req.Page)

	_, err = p.Request(Values{"limit": "many"}, Predicate{})
	assert.Error(t, err)
}

func TestRequestRejectsPageBeyondAddressableOffset(t *testing.T) {
	p := NewPaginator(10, 100)

	_, err := p.Request(Values{"page": "922337203685477582"}, Predicate{})
	require.Error(t, err)
	assert.Equal(t, errors.ValidationError, errors.As(err).Code)

	_, err = p.Request(Values{"page": "922337203685477580"}, Predicate{})
	assert.NoError(t, err)
}

func TestWindowClampsHugePages(t *testing.T) {
	src, seen := intSource(3)
	p := NewPaginator(10, 100)

	page, err := Paginate(context.Background(), p, src, PageRequest{Page: math.MaxInt, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.GreaterOrEqual(t, seen.Offset, 0)
	assert.GreaterOrEqual(t, seen.Offset+seen.Limit, seen.Offset)
}
