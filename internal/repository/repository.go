package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool は PostgreSQL 接続プールを生成する
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Open は driver ("postgres" または "sqlite") に応じた Store を開く
func Open(ctx context.Context, driver, databaseURL, sqlitePath string) (Store, error) {
	switch driver {
	case "", "postgres":
		pool, err := NewPool(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewPgStore(pool), nil
	case "sqlite":
		return OpenSQLiteStore(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("open: unknown store driver %q", driver)
	}
}
