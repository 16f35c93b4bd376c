package repository

import (
	"context"
	"log/slog"

	"transfer-hub/internal/domain"
)

// SeedChannels upserts channels by code, so it is safe to run on every start.
func SeedChannels(ctx context.Context, store domain.Store, channels []domain.Channel, logger *slog.Logger) error {
	return store.WithTransaction(ctx, func(s domain.Store) error {
		for _, ch := range channels {
			if err := s.Channels().UpsertChannel(ctx, &ch); err != nil {
				return err
			}
			logger.Info("Channel seeded", "channel_code", ch.Code, "channel_id", ch.ID)
		}
		return nil
	})
}
