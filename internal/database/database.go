// Package database provides PostgreSQL connection management, transaction
// scoping and schema migrations.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventbooking/internal/config"
	"github.com/Shivanand-hulikatti/eventbooking/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const retryDelay = 2 * time.Second

// NewPool creates and validates a pgxpool connection pool.
// It retries to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, l logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	for attempt := 1; attempt <= cfg.ConnAttempts; attempt++ {
		var pool *pgxpool.Pool
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		l.Warn("db connect attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.ConnAttempts,
			"error", err,
		)
		if attempt == cfg.ConnAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("connect to postgres: %w", err)
}
