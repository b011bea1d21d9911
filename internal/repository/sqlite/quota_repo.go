package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"adwatch/internal/repository"
)

// QuotaRepo implements repository.QuotaRepository
type QuotaRepo struct {
	db *DB
}

func NewQuotaRepo(db *DB) repository.QuotaRepository {
	return &QuotaRepo{db: db}
}

func (r *QuotaRepo) LastReset(ctx context.Context, userID int64) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `SELECT last_reset_at FROM quota_resets WHERE user_id = ?`, userID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get quota reset: %w", err)
	}
	return at, nil
}

func (r *QuotaRepo) Reset(ctx context.Context, userID int64, at time.Time) error {
	query := `
		INSERT INTO quota_resets (user_id, last_reset_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_reset_at = excluded.last_reset_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, at.UTC()); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}
