package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"transfer-hub/internal/domain"
	"transfer-hub/internal/errors"
)

type channelRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewChannelRepository(db SQLExecutor, logger *slog.Logger) domain.ChannelRepository {
	return &channelRepository{
		db:     db,
		logger: logger,
	}
}

func (r *channelRepository) UpsertChannel(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (id, code, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING id, code, name, created_at, updated_at
	`

	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}

	err := sqlx.GetContext(ctx, r.db, ch, query, ch.ID, ch.Code, ch.Name, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to upsert channel", "channel_code", ch.Code, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to upsert channel").WithDetails(err.Error())
	}
	return nil
}

func (r *channelRepository) GetChannelByCode(ctx context.Context, code string) (*domain.Channel, error) {
	return r.get(ctx, "code", code)
}

func (r *channelRepository) GetChannelByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	return r.get(ctx, "id", id)
}

func (r *channelRepository) get(ctx context.Context, column string, value any) (*domain.Channel, error) {
	query := `SELECT id, code, name, created_at, updated_at FROM channels WHERE ` + column + ` = $1`

	var ch domain.Channel
	if err := sqlx.GetContext(ctx, r.db, &ch, query, value); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get channel", column, value, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get channel").WithDetails(err.Error())
	}
	return &ch, nil
}
