package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

// ActionFilters is the list configuration for action log entries.
var ActionFilters = query.FilterConfig{
	AllowedFilters: []string{"type", "transactionId"},
	Search: &query.SearchConfig{
		SearchKey:    "q",
		SearchFields: []string{"transactionId"},
	},
}

type ActionService struct {
	store     domain.Store
	paginator query.Paginator
	logger    *slog.Logger
}

func NewActionService(store domain.Store, paginator query.Paginator, logger *slog.Logger) *ActionService {
	return &ActionService{
		store:     store,
		paginator: paginator,
		logger:    logger,
	}
}

// Add appends an entry for tx through store, which is expected to be the
// store of the unit of work that changed tx. Errors are returned so the
// surrounding unit of work rolls back.
func (s *ActionService) Add(ctx context.Context, store domain.Store, actionType domain.ActionType, tx *domain.Transaction) (*domain.ActionLogEntry, error) {
	entry := &domain.ActionLogEntry{
		Type:          actionType,
		TransactionID: tx.ID,
		Snapshot:      tx.Snapshot(),
	}

	if err := store.Actions().CreateAction(ctx, entry); err != nil {
		s.logger.Error("Failed to append action log entry",
			"transaction_id", tx.ID,
			"type", actionType,
			"error", err)
		return nil, err
	}

	s.logger.Debug("Action recorded", "action_id", entry.ID, "transaction_id", tx.ID, "type", actionType)
	return entry, nil
}

func (s *ActionService) FindAll(ctx context.Context, values query.Values) (*query.Page[*domain.ActionLogEntry], error) {
	if raw, ok := values.Get("type"); ok {
		if _, valid := domain.ParseActionType(raw); !valid {
			return nil, errors.NewAppErrorf(errors.ValidationError, "unknown action type %q", raw)
		}
	}

	where, err := query.BuildPredicate(values, ActionFilters)
	if err != nil {
		return nil, err
	}
	req, err := s.paginator.Request(values, where)
	if err != nil {
		return nil, err
	}

	repo := s.store.Actions()
	return query.Paginate(ctx, s.paginator, query.SourceFuncs[*domain.ActionLogEntry]{
		CountFunc: repo.CountActions,
		FindFunc:  repo.FindActions,
	}, req)
}

// ForTransaction returns the history of one transaction, oldest first.
func (s *ActionService) ForTransaction(ctx context.Context, id uuid.UUID) ([]*domain.ActionLogEntry, error) {
	tx, err := s.store.Transactions().GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.ErrTransactionNotFound
	}

	where := query.Predicate{All: []query.Condition{
		{Field: "transactionId", Op: query.OpEq, Value: id.String()},
	}}
	entries, err := s.store.Actions().FindActions(ctx, where, query.Window{
		Limit:   s.paginator.MaxLimit,
		OrderBy: query.OrderBy{Field: "createdAt", Direction: query.Asc},
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.ActionLogEntry{}
	}
	return entries, nil
}
