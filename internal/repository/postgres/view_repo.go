package postgres

import (
	"context"
	"fmt"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ViewRepo implements repository.ViewRepository
type ViewRepo struct {
	pool *pgxpool.Pool
}

func NewViewRepo(pool *pgxpool.Pool) repository.ViewRepository {
	return &ViewRepo{pool: pool}
}

func (r *ViewRepo) Create(ctx context.Context, view *domain.ViewRecord) error {
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now()
	}
	view.ViewedAt = view.ViewedAt.UTC()
	err := r.pool.QueryRow(ctx, `
INSERT INTO viewed_ads (user_id, ad_id, viewed_at, verification_code, is_valid)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, view.UserID, view.AdID, view.ViewedAt, view.Code, view.Valid).Scan(&view.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateView
	}
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	return nil
}

func (r *ViewRepo) ExistsValid(ctx context.Context, userID, adID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM viewed_ads WHERE user_id = $1 AND ad_id = $2 AND is_valid)
`, userID, adID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check view: %w", err)
	}
	return exists, nil
}

func (r *ViewRepo) ListValid(ctx context.Context, userID int64) ([]domain.ViewRecord, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, ad_id, viewed_at, verification_code, is_valid
FROM viewed_ads
WHERE user_id = $1 AND is_valid
ORDER BY viewed_at DESC, id DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ViewRecord, 0)
	for rows.Next() {
		var v domain.ViewRecord
		if err := rows.Scan(&v.ID, &v.UserID, &v.AdID, &v.ViewedAt, &v.Code, &v.Valid); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return items, nil
}

func (r *ViewRepo) CountValidSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM viewed_ads
WHERE user_id = $1 AND is_valid AND viewed_at > $2::timestamptz
`, userID, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count views: %w", err)
	}
	return n, nil
}
