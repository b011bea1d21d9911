// Package postgres provides PostgreSQL implementation of repository interfaces
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to dsn
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MinConns = 0
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS ads (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT,
	price NUMERIC(12,2),
	video_url TEXT NOT NULL,
	thumbnail TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS viewed_ads (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	ad_id BIGINT NOT NULL REFERENCES ads(id) ON DELETE CASCADE,
	viewed_at TIMESTAMPTZ NOT NULL,
	verification_code TEXT NOT NULL,
	is_valid BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS quota_resets (
	user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	last_reset_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ads_created ON ads(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ads_category ON ads(category)`,
	`CREATE INDEX IF NOT EXISTS idx_viewed_ads_user ON viewed_ads(user_id, viewed_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_viewed_ads_valid ON viewed_ads(user_id, ad_id) WHERE is_valid`,
}

// Migrate creates the schema
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
