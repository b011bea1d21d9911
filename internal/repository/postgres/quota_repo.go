package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adwatch/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepo implements repository.QuotaRepository
type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) repository.QuotaRepository {
	return &QuotaRepo{pool: pool}
}

func (r *QuotaRepo) LastReset(ctx context.Context, userID int64) (time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `SELECT last_reset_at FROM quota_resets WHERE user_id = $1`, userID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get quota reset: %w", err)
	}
	return at, nil
}

func (r *QuotaRepo) Reset(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO quota_resets (user_id, last_reset_at)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET last_reset_at = EXCLUDED.last_reset_at
`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	return nil
}
