package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

const selectTransactions = `
	SELECT t.id, t.reference, t.amount, t.fees, t.currency, t.status,
	       t.payee_name, t.payee_phone, t.channel_id, t.metadata,
	       t.created_at, t.updated_at,
	       c.id AS "channel.id", c.code AS "channel.code", c.name AS "channel.name",
	       c.created_at AS "channel.created_at", c.updated_at AS "channel.updated_at"
	FROM transactions t
	JOIN channels c ON c.id = t.channel_id`

const countTransactions = `
	SELECT COUNT(*)
	FROM transactions t
	JOIN channels c ON c.id = t.channel_id`

var transactionResource = resource{
	columns: map[string]string{
		"id":         "t.id::text",
		"reference":  "t.reference",
		"amount":     "t.amount",
		"fees":       "t.fees",
		"currency":   "t.currency",
		"status":     "t.status",
		"payeeName":  "t.payee_name",
		"payeePhone": "t.payee_phone",
		"channelId":  "t.channel_id::text",
		"createdAt":  "t.created_at",
		"updatedAt":  "t.updated_at",
	},
	relations: map[string]map[string]string{
		"channel": {
			"id":   "c.id::text",
			"code": "c.code",
			"name": "c.name",
		},
	},
	tieBreaker: "t.id",
}

// transactionRow overlays the columns the domain type does not map directly.
type transactionRow struct {
	domain.Transaction
	Metadata []byte         `db:"metadata"`
	Channel  domain.Channel `db:"channel"`
}

func (row *transactionRow) toDomain() (*domain.Transaction, error) {
	tx := row.Transaction
	ch := row.Channel
	tx.Channel = &ch
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &tx.Metadata); err != nil {
			return nil, err
		}
	}
	return &tx, nil
}

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, reference, amount, fees, currency, status, payee_name, payee_phone, channel_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	now := time.Now().UTC()

	metadata := []byte("{}")
	if tx.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(tx.Metadata); err != nil {
			return errors.NewAppError(errors.ValidationError, "metadata must be a JSON object").WithDetails(err.Error())
		}
	}

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.Reference,
		tx.Amount,
		tx.Fees,
		tx.Currency,
		tx.Status,
		tx.PayeeName,
		tx.PayeePhone,
		tx.ChannelID,
		metadata,
		now,
		now,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "transactions_reference_key" {
					r.logger.Warn("Duplicate transaction reference", "reference", tx.Reference)
					return errors.ErrDuplicateReference
				}
			case "23503": // foreign_key_violation
				return errors.ErrChannelNotFound
			}
		}
		r.logger.Error("Failed to create transaction",
			"reference", tx.Reference,
			"channel_id", tx.ChannelID,
			"amount", tx.Amount,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	if tx.Channel == nil {
		ch, err := NewChannelRepository(r.db, r.logger).GetChannelByID(ctx, tx.ChannelID)
		if err != nil {
			return err
		}
		tx.Channel = ch
	}
	r.logger.Debug("Transaction inserted", "transaction_id", tx.ID, "reference", tx.Reference)
	return nil
}

func (r *transactionRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var row transactionRow
	err := sqlx.GetContext(ctx, r.db, &row, selectTransactions+" WHERE t.id = $1", id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}
	return row.toDomain()
}

func (r *transactionRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.Status) (*domain.Transaction, error) {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update transaction status",
			"transaction_id", id,
			"status", status,
			"error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to update transaction status").WithDetails(err.Error())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rows == 0 {
		return nil, errors.ErrTransactionNotFound
	}
	return r.GetTransactionByID(ctx, id)
}

// CompareAndSetStatus relies on the row lock taken by UPDATE: a concurrent
// caller re-evaluates the status predicate after the first commits and
// updates nothing.
func (r *transactionRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) (*domain.Transaction, error) {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		r.logger.Error("Failed to transition transaction",
			"transaction_id", id,
			"from", from,
			"to", to,
			"error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to update transaction status").WithDetails(err.Error())
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}

	tx, err := r.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.ErrTransactionNotFound
	}
	if rows == 0 {
		return nil, errors.ErrInvalidTransition.WithDetails("transaction is " + string(tx.Status))
	}
	return tx, nil
}

func (r *transactionRepository) CountTransactions(ctx context.Context, where query.Predicate) (int64, error) {
	q, args, err := transactionResource.count(countTransactions, where)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, q, args...); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, errors.NewAppError(errors.InternalError, "failed to count transactions").WithDetails(err.Error())
	}
	return total, nil
}

func (r *transactionRepository) FindTransactions(ctx context.Context, where query.Predicate, w query.Window) ([]*domain.Transaction, error) {
	q, args, err := transactionResource.selectWindow(selectTransactions, where, w)
	if err != nil {
		return nil, err
	}

	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, args...); err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}

	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].toDomain()
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to decode transaction").WithDetails(err.Error())
		}
		out = append(out, tx)
	}
	return out, nil
}
