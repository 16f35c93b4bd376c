package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	db       *sqlx.DB
	executor SQLExecutor
	logger   *slog.Logger
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:       db,
		executor: db,
		logger:   logger,
	}
}

func (s *Store) Channels() domain.ChannelRepository {
	return NewChannelRepository(s.executor, s.logger)
}

func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Actions() domain.ActionRepository {
	return NewActionRepository(s.executor, s.logger)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	// Already inside a transaction: join it
	if _, ok := s.executor.(*sqlx.Tx); ok {
		return fn(s)
	}
	if s.db == nil {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return errors.NewAppError(errors.InternalError, "failed to begin transaction").WithDetails(err.Error())
	}

	txStore := &Store{
		db:       s.db,
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return errors.NewAppError(errors.InternalError, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}
