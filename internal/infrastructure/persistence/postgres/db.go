// Package postgres holds the optional audit trail: an out-of-band copy of
// every processed payment, batch-inserted so the payment flow never waits on
// SQL. The gateway runs fine without it; the Redis ledger stays the source
// of truth for summaries.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createSchema = `
	CREATE TABLE IF NOT EXISTS processed_payments (
		correlation_id UUID PRIMARY KEY,
		amount         NUMERIC(18, 2) NOT NULL,
		processor      TEXT NOT NULL,
		requested_at   TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ NOT NULL,
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_processed_payments_processed_at
		ON processed_payments (processed_at)`

// Connect opens a pgx pool against the audit database, verifies connectivity
// and makes sure the schema exists.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	logger.Info("connecting to audit database",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
	)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	logger.Info("successfully connected to audit database",
		"max_conns", cfg.MaxConns,
	)

	return pool, nil
}
