package domain

import "context"

// Store groups the repositories and runs units of work across them.
type Store interface {
	Channels() ChannelRepository
	Transactions() TransactionRepository
	Actions() ActionRepository
	// WithTransaction runs fn against a store bound to a single transaction,
	// committing when fn returns nil and rolling back otherwise.
	WithTransaction(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}
