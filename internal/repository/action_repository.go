package repository

import (
	"context"
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

const selectActions = `SELECT a.id, a.type, a.transaction_id, a.snapshot, a.created_at FROM actions a`

const countActions = `SELECT COUNT(*) FROM actions a`

var actionResource = resource{
	columns: map[string]string{
		"id":            "a.id::text",
		"type":          "a.type",
		"transactionId": "a.transaction_id::text",
		"createdAt":     "a.created_at",
	},
	tieBreaker: "a.seq",
}

type actionRow struct {
	domain.ActionLogEntry
	Snapshot []byte `db:"snapshot"`
}

func (row *actionRow) toDomain() (*domain.ActionLogEntry, error) {
	entry := row.ActionLogEntry
	if err := json.Unmarshal(row.Snapshot, &entry.Snapshot); err != nil {
		return nil, err
	}
	return &entry, nil
}

type actionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewActionRepository(db SQLExecutor, logger *slog.Logger) domain.ActionRepository {
	return &actionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *actionRepository) CreateAction(ctx context.Context, entry *domain.ActionLogEntry) error {
	query := `
		INSERT INTO actions (id, type, transaction_id, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode snapshot").WithDetails(err.Error())
	}
	now := time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.Type, entry.TransactionID, snapshot, now); err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23503" {
			return errors.ErrTransactionNotFound
		}
		r.logger.Error("Failed to record action",
			"transaction_id", entry.TransactionID,
			"type", entry.Type,
			"error", err)
		return errors.NewAppError(errors.InternalError, "failed to record action").WithDetails(err.Error())
	}

	entry.CreatedAt = now
	return nil
}

func (r *actionRepository) CountActions(ctx context.Context, where query.Predicate) (int64, error) {
	q, args, err := actionResource.count(countActions, where)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, q, args...); err != nil {
		r.logger.Error("Failed to count actions", "error", err)
		return 0, errors.NewAppError(errors.InternalError, "failed to count actions").WithDetails(err.Error())
	}
	return total, nil
}

func (r *actionRepository) FindActions(ctx context.Context, where query.Predicate, w query.Window) ([]*domain.ActionLogEntry, error) {
	q, args, err := actionResource.selectWindow(selectActions, where, w)
	if err != nil {
		return nil, err
	}

	var rows []actionRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, args...); err != nil {
		r.logger.Error("Failed to list actions", "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list actions").WithDetails(err.Error())
	}

	out := make([]*domain.ActionLogEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toDomain()
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to decode action").WithDetails(err.Error())
		}
		out = append(out, entry)
	}
	return out, nil
}
