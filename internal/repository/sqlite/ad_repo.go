package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/repository"
)

const adColumns = `id, user_id, title, category, description, price, video_url, thumbnail, created_at`

// AdRepo implements repository.AdRepository
type AdRepo struct {
	db *DB
}

func NewAdRepo(db *DB) repository.AdRepository {
	return &AdRepo{db: db}
}

func (r *AdRepo) Create(ctx context.Context, ad *domain.Ad) error {
	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = time.Now()
	}
	ad.CreatedAt = ad.CreatedAt.UTC()
	query := `
		INSERT INTO ads (user_id, title, category, description, price, video_url, thumbnail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		ad.UserID, ad.Title, ad.Category, ad.Description, ad.Price, ad.VideoURL, ad.ThumbnailURL, ad.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ad: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ad ID: %w", err)
	}
	ad.ID = id
	return nil
}

func (r *AdRepo) GetByID(ctx context.Context, id int64) (*domain.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE id = ?`
	ad, err := scanAd(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}
	return ad, nil
}

// List returns ads matching filter, newest first
func (r *AdRepo) List(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error) {
	var where []string
	var args []interface{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	if filter.Category != "" && filter.Category != domain.CategoryAll {
		where = append(where, `category = ?`)
		args = append(args, filter.Category)
	}

	query := `SELECT ` + adColumns + ` FROM ads`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	defer rows.Close()

	ads := []domain.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAd(row rowScanner) (*domain.Ad, error) {
	var a domain.Ad
	var desc sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Category, &desc, &a.Price,
		&a.VideoURL, &a.ThumbnailURL, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Description = desc.String
	return &a, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
