// Package memory is an in-process implementation of the domain store. It
// honours the same contracts as the postgres store and is used for tests and
// for running the service without a database.
package memory

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

type state struct {
	channels     map[uuid.UUID]domain.Channel
	channelCodes map[string]uuid.UUID
	transactions map[uuid.UUID]domain.Transaction
	txOrder      []uuid.UUID
	references   map[string]uuid.UUID
	actions      []domain.ActionLogEntry
}

func (s *state) clone() *state {
	return &state{
		channels:     maps.Clone(s.channels),
		channelCodes: maps.Clone(s.channelCodes),
		transactions: maps.Clone(s.transactions),
		txOrder:      append([]uuid.UUID(nil), s.txOrder...),
		references:   maps.Clone(s.references),
		actions:      append([]domain.ActionLogEntry(nil), s.actions...),
	}
}

// Store keeps every record in memory behind a single lock.
type Store struct {
	mu     *sync.RWMutex
	data   **state
	inTx   bool
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Store = (*Store)(nil)

// NewStore returns an empty store seeded with the default channels.
func NewStore(logger *slog.Logger) *Store {
	st := &state{
		channels:     make(map[uuid.UUID]domain.Channel),
		channelCodes: make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]domain.Transaction),
		references:   make(map[string]uuid.UUID),
	}
	s := &Store{
		mu:     &sync.RWMutex{},
		data:   &st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, ch := range domain.DefaultChannels {
		if err := s.Channels().UpsertChannel(context.Background(), &ch); err != nil {
			logger.Error("Failed to seed channel", "channel_code", ch.Code, "error", err)
		}
	}
	return s
}

func (s *Store) Channels() domain.ChannelRepository         { return &channelRepository{s} }
func (s *Store) Transactions() domain.TransactionRepository { return &transactionRepository{s} }
func (s *Store) Actions() domain.ActionRepository           { return &actionRepository{s} }

func (s *Store) Ping(context.Context) error { return nil }

// WithTransaction holds the write lock for the whole of fn and restores the
// previous state when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := (*s.data).clone()
	txStore := &Store{mu: s.mu, data: s.data, inTx: true, logger: s.logger, now: s.now}

	defer func() {
		if p := recover(); p != nil {
			*s.data = backup
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		*s.data = backup
		return err
	}
	return nil
}

func (s *Store) read() (*state, func()) {
	if s.inTx {
		return *s.data, func() {}
	}
	s.mu.RLock()
	return *s.data, s.mu.RUnlock
}

func (s *Store) write() (*state, func()) {
	if s.inTx {
		return *s.data, func() {}
	}
	s.mu.Lock()
	return *s.data, s.mu.Unlock
}

// checkFields rejects predicates and orderings naming fields proto does not expose.
func checkFields(proto query.Record, where query.Predicate, orderBy *query.OrderBy) error {
	conds := append(append([]query.Condition(nil), where.All...), where.Any...)
	for _, c := range conds {
		if _, ok := proto.Value(c.Relation, c.Field); !ok {
			return errors.NewAppErrorf(errors.ValidationError, "unknown filter field %q", c.Field)
		}
	}
	if orderBy != nil {
		if _, ok := proto.Value("", orderBy.Field); !ok {
			return errors.NewAppErrorf(errors.ValidationError, "cannot sort by %q", orderBy.Field)
		}
	}
	return nil
}

// window sorts records by the window ordering, keeping insertion order for
// ties, and returns the requested slice.
func window[T query.Record](records []T, w query.Window) []T {
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].Value("", w.OrderBy.Field)
		b, _ := records[j].Value("", w.OrderBy.Field)
		cmp, _ := query.Compare(a, b)
		if w.OrderBy.Direction == query.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	if w.Offset < 0 || w.Offset >= len(records) {
		return nil
	}
	end := len(records)
	if w.Limit > 0 && w.Limit < end-w.Offset {
		end = w.Offset + w.Limit
	}
	return records[w.Offset:end]
}
