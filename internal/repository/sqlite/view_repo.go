package sqlite

import (
	"context"
	"fmt"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/repository"
)

// ViewRepo implements repository.ViewRepository
type ViewRepo struct {
	db *DB
}

func NewViewRepo(db *DB) repository.ViewRepository {
	return &ViewRepo{db: db}
}

// Create inserts a view record. The partial unique index on valid rows turns
// a second valid view of the same ad into domain.ErrDuplicateView.
func (r *ViewRepo) Create(ctx context.Context, view *domain.ViewRecord) error {
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now()
	}
	view.ViewedAt = view.ViewedAt.UTC()
	query := `
		INSERT INTO viewed_ads (user_id, ad_id, viewed_at, verification_code, is_valid)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		view.UserID, view.AdID, view.ViewedAt, view.Code, view.Valid)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateView
	}
	if err != nil {
		return fmt.Errorf("failed to create view: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get view ID: %w", err)
	}
	view.ID = id
	return nil
}

func (r *ViewRepo) ExistsValid(ctx context.Context, userID, adID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM viewed_ads WHERE user_id = ? AND ad_id = ? AND is_valid = 1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, adID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check view: %w", err)
	}
	return exists, nil
}

func (r *ViewRepo) ListValid(ctx context.Context, userID int64) ([]domain.ViewRecord, error) {
	query := `
		SELECT id, user_id, ad_id, viewed_at, verification_code, is_valid
		FROM viewed_ads WHERE user_id = ? AND is_valid = 1
		ORDER BY viewed_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	views := []domain.ViewRecord{}
	for rows.Next() {
		var v domain.ViewRecord
		if err := rows.Scan(&v.ID, &v.UserID, &v.AdID, &v.ViewedAt, &v.Code, &v.Valid); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *ViewRepo) CountValidSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM viewed_ads WHERE user_id = ? AND is_valid = 1 AND viewed_at > ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count views: %w", err)
	}
	return count, nil
}
