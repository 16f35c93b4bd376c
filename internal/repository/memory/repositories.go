package memory

import (
	"context"
	"maps"

	"github.com/google/uuid"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

type channelRepository struct{ s *Store }

func (r *channelRepository) UpsertChannel(_ context.Context, ch *domain.Channel) error {
	st, unlock := r.s.write()
	defer unlock()

	now := r.s.now()
	if id, ok := st.channelCodes[ch.Code]; ok {
		existing := st.channels[id]
		existing.Name = ch.Name
		existing.UpdatedAt = now
		st.channels[id] = existing
		*ch = existing
		return nil
	}

	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	ch.CreatedAt, ch.UpdatedAt = now, now
	st.channels[ch.ID] = *ch
	st.channelCodes[ch.Code] = ch.ID
	return nil
}

func (r *channelRepository) GetChannelByCode(_ context.Context, code string) (*domain.Channel, error) {
	st, unlock := r.s.read()
	defer unlock()

	id, ok := st.channelCodes[code]
	if !ok {
		return nil, nil
	}
	ch := st.channels[id]
	return &ch, nil
}

func (r *channelRepository) GetChannelByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	st, unlock := r.s.read()
	defer unlock()

	ch, ok := st.channels[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

type transactionRepository struct{ s *Store }

var transactionProto = &domain.Transaction{Channel: &domain.Channel{}}

func (r *transactionRepository) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, ok := st.references[tx.Reference]; ok {
		r.s.logger.Warn("Duplicate transaction reference", "reference", tx.Reference)
		return errors.ErrDuplicateReference
	}
	if _, ok := st.channels[tx.ChannelID]; !ok {
		return errors.ErrChannelNotFound
	}

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	now := r.s.now()
	tx.CreatedAt, tx.UpdatedAt = now, now

	stored := *tx
	stored.Channel = nil
	stored.Metadata = maps.Clone(tx.Metadata)
	st.transactions[tx.ID] = stored
	st.txOrder = append(st.txOrder, tx.ID)
	st.references[tx.Reference] = tx.ID

	ch := st.channels[tx.ChannelID]
	tx.Channel = &ch
	return nil
}

func (r *transactionRepository) GetTransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	st, unlock := r.s.read()
	defer unlock()

	tx, ok := st.transactions[id]
	if !ok {
		return nil, nil
	}
	return withChannel(st, tx), nil
}

func (r *transactionRepository) UpdateTransactionStatus(_ context.Context, id uuid.UUID, status domain.Status) (*domain.Transaction, error) {
	st, unlock := r.s.write()
	defer unlock()

	tx, ok := st.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = r.s.now()
	st.transactions[id] = tx
	return withChannel(st, tx), nil
}

func (r *transactionRepository) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to domain.Status) (*domain.Transaction, error) {
	st, unlock := r.s.write()
	defer unlock()

	tx, ok := st.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	if tx.Status != from {
		return nil, errors.ErrInvalidTransition.WithDetails("transaction is " + string(tx.Status))
	}
	tx.Status = to
	tx.UpdatedAt = r.s.now()
	st.transactions[id] = tx
	return withChannel(st, tx), nil
}

func (r *transactionRepository) CountTransactions(_ context.Context, where query.Predicate) (int64, error) {
	if err := checkFields(transactionProto, where, nil); err != nil {
		return 0, err
	}
	st, unlock := r.s.read()
	defer unlock()

	return int64(len(r.matching(st, where))), nil
}

func (r *transactionRepository) FindTransactions(_ context.Context, where query.Predicate, w query.Window) ([]*domain.Transaction, error) {
	if err := checkFields(transactionProto, where, &w.OrderBy); err != nil {
		return nil, err
	}
	st, unlock := r.s.read()
	defer unlock()

	return window(r.matching(st, where), w), nil
}

func (r *transactionRepository) matching(st *state, where query.Predicate) []*domain.Transaction {
	var out []*domain.Transaction
	for _, id := range st.txOrder {
		tx := withChannel(st, st.transactions[id])
		if where.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// withChannel returns a caller-owned copy of tx with its channel attached.
func withChannel(st *state, tx domain.Transaction) *domain.Transaction {
	tx.Metadata = maps.Clone(tx.Metadata)
	if ch, ok := st.channels[tx.ChannelID]; ok {
		tx.Channel = &ch
	}
	return &tx
}

type actionRepository struct{ s *Store }

var actionProto = &domain.ActionLogEntry{}

func (r *actionRepository) CreateAction(_ context.Context, entry *domain.ActionLogEntry) error {
	st, unlock := r.s.write()
	defer unlock()

	if _, ok := st.transactions[entry.TransactionID]; !ok {
		return errors.ErrTransactionNotFound
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.now()
	st.actions = append(st.actions, *entry)
	return nil
}

func (r *actionRepository) CountActions(_ context.Context, where query.Predicate) (int64, error) {
	if err := checkFields(actionProto, where, nil); err != nil {
		return 0, err
	}
	st, unlock := r.s.read()
	defer unlock()

	return int64(len(r.matching(st, where))), nil
}

func (r *actionRepository) FindActions(_ context.Context, where query.Predicate, w query.Window) ([]*domain.ActionLogEntry, error) {
	if err := checkFields(actionProto, where, &w.OrderBy); err != nil {
		return nil, err
	}
	st, unlock := r.s.read()
	defer unlock()

	return window(r.matching(st, where), w), nil
}

func (r *actionRepository) matching(st *state, where query.Predicate) []*domain.ActionLogEntry {
	var out []*domain.ActionLogEntry
	for _, a := range st.actions {
		a := a
		if where.Matches(&a) {
			out = append(out, &a)
		}
	}
	return out
}
