package query

import (
	"context"
	"math"
	"strconv"
	"strings"

	"transfer-hub/internal/errors"
)

// Pagination defaults.
const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortField = "createdAt"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type OrderBy struct {
	Field     string
	Direction Direction
}

// Window is the slice of an ordered result set a store should return.
type Window struct {
	Offset  int
	Limit   int
	OrderBy OrderBy
}

type PageRequest struct {
	Page    int
	Limit   int
	Where   Predicate
	OrderBy OrderBy
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Source is a collection that can be counted and read window by window.
type Source[T any] interface {
	Count(ctx context.Context, where Predicate) (int64, error)
	Find(ctx context.Context, where Predicate, window Window) ([]T, error)
}

// SourceFuncs adapts a pair of functions to Source.
type SourceFuncs[T any] struct {
	CountFunc func(ctx context.Context, where Predicate) (int64, error)
	FindFunc  func(ctx context.Context, where Predicate, window Window) ([]T, error)
}

func (s SourceFuncs[T]) Count(ctx context.Context, where Predicate) (int64, error) {
	return s.CountFunc(ctx, where)
}

func (s SourceFuncs[T]) Find(ctx context.Context, where Predicate, window Window) ([]T, error) {
	return s.FindFunc(ctx, where, window)
}

// Paginator holds the paging defaults shared by every list endpoint.
type Paginator struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultSortField string
}

func NewPaginator(defaultLimit, maxLimit int) Paginator {
	p := Paginator{DefaultLimit: defaultLimit, MaxLimit: maxLimit, DefaultSortField: DefaultSortField}
	if p.DefaultLimit <= 0 {
		p.DefaultLimit = DefaultLimit
	}
	if p.MaxLimit < p.DefaultLimit {
		p.MaxLimit = max(MaxLimit, p.DefaultLimit)
	}
	return p
}

// BuildOrderBy maps an optional field and asc|desc into an ordering,
// defaulting to ascending on the default sort field.
func (p Paginator) BuildOrderBy(sortBy, sortOrder string) (OrderBy, error) {
	ob := OrderBy{Field: strings.TrimSpace(sortBy), Direction: Asc}
	if ob.Field == "" {
		ob.Field = p.DefaultSortField
	}

	switch Direction(strings.ToLower(strings.TrimSpace(sortOrder))) {
	case "", Asc:
	case Desc:
		ob.Direction = Desc
	default:
		return OrderBy{}, errors.NewAppErrorf(errors.ValidationError, "sortOrder must be asc or desc, got %q", sortOrder)
	}

	return ob, nil
}

// Request reads page, limit, sortBy and sortOrder from values.
func (p Paginator) Request(values Values, where Predicate) (PageRequest, error) {
	page, err := positiveInt(values, "page", 1)
	if err != nil {
		return PageRequest{}, err
	}
	limit, err := positiveInt(values, "limit", p.DefaultLimit)
	if err != nil {
		return PageRequest{}, err
	}

	if last := maxPage(p.clampLimit(limit)); page > last {
		return PageRequest{}, errors.NewAppErrorf(errors.ValidationError, "page must not exceed %d", last)
	}

	orderBy, err := p.BuildOrderBy(values["sortBy"], values["sortOrder"])
	if err != nil {
		return PageRequest{}, err
	}

	return PageRequest{Page: page, Limit: limit, Where: where, OrderBy: orderBy}, nil
}

// Window clamps page and limit and returns the window they describe.
func (p Paginator) Window(req PageRequest) (page int, window Window) {
	limit := p.clampLimit(req.Limit)
	page = min(max(req.Page, 1), maxPage(limit))

	orderBy := req.OrderBy
	if orderBy.Field == "" {
		orderBy.Field = p.DefaultSortField
	}
	if orderBy.Direction == "" {
		orderBy.Direction = Asc
	}

	return page, Window{Offset: (page - 1) * limit, Limit: limit, OrderBy: orderBy}
}

func (p Paginator) clampLimit(limit int) int {
	if limit <= 0 {
		limit = p.DefaultLimit
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		limit = p.MaxLimit
	}
	return max(limit, 1)
}

// maxPage is the largest page whose window end still fits in an int.
func maxPage(limit int) int {
	return math.MaxInt / limit
}

// Paginate counts the matching records, fetches the requested window and
// wraps both with pagination metadata.
func Paginate[T any](ctx context.Context, p Paginator, src Source[T], req PageRequest) (*Page[T], error) {
	page, window := p.Window(req)

	total, err := src.Count(ctx, req.Where)
	if err != nil {
		return nil, err
	}

	data, err := src.Find(ctx, req.Where, window)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []T{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(window.Limit) - 1) / int64(window.Limit))
	}

	return &Page[T]{
		Data: data,
		Pagination: Pagination{
			Page:       page,
			Limit:      window.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func positiveInt(values Values, key string, fallback int) (int, error) {
	raw, ok := values.lookup(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewAppErrorf(errors.ValidationError, "%s must be an integer", key).WithDetails(err.Error())
	}
	if n <= 0 {
		return fallback, nil
	}
	return n, nil
}
