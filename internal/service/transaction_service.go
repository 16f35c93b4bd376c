package service

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/google/uuid"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/fee"
	"transfer-hub/internal/query"
)

// maxReferenceAttempts bounds retries after a reference collision.
const maxReferenceAttempts = 3

const DefaultCurrency = "XOF"

// TransactionFilters is the list configuration for transactions.
var TransactionFilters = query.FilterConfig{
	AllowedFilters: []string{"status"},
	RelationFilters: []query.RelationFilter{
		{Relation: "channel", Field: "code", FilterKey: "channel", Operator: query.OpEq},
	},
	NumericFilters: []query.NumericFilter{
		{Field: "amount", MinKey: "minAmount", MaxKey: "maxAmount"},
	},
	Search: &query.SearchConfig{
		SearchKey:    "q",
		SearchFields: []string{"reference", "payeeName", "payeePhone"},
		RelationSearchFields: []query.RelationSearch{
			{Relation: "channel", Fields: []string{"name", "code"}},
		},
	},
}

type ReferenceGenerator interface {
	Generate() (string, error)
}

type TransactionServiceConfig struct {
	Fees            fee.Policy
	References      ReferenceGenerator
	Paginator       query.Paginator
	DefaultCurrency string
}

type TransactionService struct {
	store     domain.Store
	actions   *ActionService
	fees      fee.Policy
	refs      ReferenceGenerator
	paginator query.Paginator
	currency  string
	logger    *slog.Logger
}

func NewTransactionService(
	store domain.Store,
	actions *ActionService,
	cfg TransactionServiceConfig,
	logger *slog.Logger,
) *TransactionService {
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &TransactionService{
		store:     store,
		actions:   actions,
		fees:      cfg.Fees,
		refs:      cfg.References,
		paginator: cfg.Paginator,
		currency:  currency,
		logger:    logger,
	}
}

type CreateTransactionRequest struct {
	Amount      int64
	ChannelCode string
	PayeeName   string
	PayeePhone  string
	Currency    string
	Metadata    map[string]any
}

// Create records a PENDING transaction charging amount plus fees, together
// with its TRANSFER_CREATED entry.
func (s *TransactionService) Create(ctx context.Context, req *CreateTransactionRequest) (*domain.Transaction, error) {
	s.logger.Info("Creating transaction",
		"amount", req.Amount,
		"channel_code", req.ChannelCode)

	fees, total, err := s.fees.Apply(req.Amount)
	if err != nil {
		s.logger.Warn("Rejected transaction amount", "amount", req.Amount)
		return nil, err
	}

	channel, err := s.store.Channels().GetChannelByCode(ctx, req.ChannelCode)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		s.logger.Warn("Channel not found", "channel_code", req.ChannelCode)
		return nil, errors.ErrChannelNotFound.WithDetails("unknown channel " + req.ChannelCode)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	for attempt := 1; ; attempt++ {
		ref, err := s.refs.Generate()
		if err != nil {
			s.logger.Error("Failed to generate reference", "error", err)
			return nil, errors.NewAppError(errors.InternalError, "failed to generate reference").WithDetails(err.Error())
		}

		tx := &domain.Transaction{
			ID:         uuid.New(),
			Reference:  ref,
			Amount:     total,
			Fees:       fees,
			Currency:   currency,
			Status:     domain.StatusPending,
			PayeeName:  req.PayeeName,
			PayeePhone: req.PayeePhone,
			ChannelID:  channel.ID,
			Channel:    channel,
			Metadata:   req.Metadata,
		}

		err = s.store.WithTransaction(ctx, func(store domain.Store) error {
			if err := store.Transactions().CreateTransaction(ctx, tx); err != nil {
				return err
			}
			_, err := s.actions.Add(ctx, store, domain.ActionTransferCreated, tx)
			return err
		})
		if err == nil {
			s.logger.Info("Transaction created successfully",
				"transaction_id", tx.ID,
				"reference", tx.Reference,
				"amount", tx.Amount,
				"fees", tx.Fees)
			return tx, nil
		}

		if !stderrors.Is(err, errors.ErrDuplicateReference) || attempt >= maxReferenceAttempts {
			s.logger.Error("Failed to create transaction", "attempt", attempt, "error", err)
			return nil, err
		}
		s.logger.Warn("Reference collision, retrying", "reference", ref, "attempt", attempt)
	}
}

// UpdateStatus sets the status without consulting the transition table and
// appends the matching entry. Callers own the transition check.
func (s *TransactionService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.Transaction, error) {
	var updated *domain.Transaction
	err := s.store.WithTransaction(ctx, func(store domain.Store) error {
		tx, err := store.Transactions().UpdateTransactionStatus(ctx, id, status)
		if err != nil {
			return err
		}
		if _, err := s.actions.Add(ctx, store, status.ActionType(), tx); err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update transaction status", "transaction_id", id, "status", status, "error", err)
		return nil, err
	}

	s.logger.Info("Transaction status updated", "transaction_id", id, "status", status)
	return updated, nil
}

// Transition moves the transaction from one status to another only when it
// is still in from, appending the matching entry in the same unit of work.
func (s *TransactionService) Transition(ctx context.Context, id uuid.UUID, from, to domain.Status) (*domain.Transaction, error) {
	if !from.CanTransitionTo(to) {
		return nil, errors.ErrInvalidTransition.WithDetails(string(from) + " cannot move to " + string(to))
	}

	var updated *domain.Transaction
	err := s.store.WithTransaction(ctx, func(store domain.Store) error {
		tx, err := store.Transactions().CompareAndSetStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if _, err := s.actions.Add(ctx, store, to.ActionType(), tx); err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		if errors.As(err).Code == errors.InternalError {
			s.logger.Error("Failed to transition transaction", "transaction_id", id, "from", from, "to", to, "error", err)
		} else {
			s.logger.Warn("Transaction transition rejected", "transaction_id", id, "from", from, "to", to, "error", err)
		}
		return nil, err
	}

	s.logger.Info("Transaction transitioned", "transaction_id", id, "from", from, "to", to)
	return updated, nil
}

func (s *TransactionService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.logger.Info("Canceling transaction", "transaction_id", id)
	return s.Transition(ctx, id, domain.StatusPending, domain.StatusCanceled)
}

func (s *TransactionService) FindOne(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.store.Transactions().GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		s.logger.Warn("Transaction not found", "transaction_id", id)
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *TransactionService) FindAll(ctx context.Context, values query.Values) (*query.Page[*domain.Transaction], error) {
	if raw, ok := values.Get("status"); ok {
		if _, valid := domain.ParseStatus(raw); !valid {
			return nil, errors.NewAppErrorf(errors.ValidationError, "unknown status %q", raw)
		}
	}

	where, err := query.BuildPredicate(values, TransactionFilters)
	if err != nil {
		return nil, err
	}
	req, err := s.paginator.Request(values, where)
	if err != nil {
		return nil, err
	}

	repo := s.store.Transactions()
	return query.Paginate(ctx, s.paginator, query.SourceFuncs[*domain.Transaction]{
		CountFunc: repo.CountTransactions,
		FindFunc:  repo.FindTransactions,
	}, req)
}
