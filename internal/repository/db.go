package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SQLExecutor represents both sqlx.DB and sqlx.Tx
type SQLExecutor interface {
	sqlx.ExtContext
}

var (
	_ SQLExecutor = (*sqlx.DB)(nil)
	_ SQLExecutor = (*sqlx.Tx)(nil)
)

// Connect opens and verifies a postgres connection pool.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
