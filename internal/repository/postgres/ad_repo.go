package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"adwatch/internal/domain"
	"adwatch/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const adColumns = `id, COALESCE(user_id, 0), title, category, COALESCE(description, ''), price::text, video_url, thumbnail, created_at`

// AdRepo implements repository.AdRepository
type AdRepo struct {
	pool *pgxpool.Pool
}

func NewAdRepo(pool *pgxpool.Pool) repository.AdRepository {
	return &AdRepo{pool: pool}
}

func (r *AdRepo) Create(ctx context.Context, ad *domain.Ad) error {
	var price *string
	if ad.Price.Valid {
		s := ad.Price.Decimal.String()
		price = &s
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO ads (user_id, title, category, description, price, video_url, thumbnail)
VALUES ($1, $2, $3, NULLIF($4, ''), $5::text::numeric, $6, $7)
RETURNING id, created_at
`, ad.UserID, ad.Title, ad.Category, ad.Description, price, ad.VideoURL, ad.ThumbnailURL).Scan(&ad.ID, &ad.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ad: %w", err)
	}
	return nil
}

func (r *AdRepo) GetByID(ctx context.Context, id int64) (*domain.Ad, error) {
	ad, err := scanAd(r.pool.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ad: %w", err)
	}
	return ad, nil
}

func (r *AdRepo) List(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error) {
	category := filter.Category
	if category == domain.CategoryAll {
		category = ""
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+adColumns+`
FROM ads
WHERE
	($1::text = '' OR title ILIKE '%' || $1::text || '%')
	AND ($2::text = '' OR category = $2::text)
ORDER BY created_at DESC, id DESC
`, escapeLike(strings.TrimSpace(filter.Query)), category)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Ad, 0)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		items = append(items, *ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads: %w", err)
	}
	return items, nil
}

func scanAd(row pgx.Row) (*domain.Ad, error) {
	var a domain.Ad
	var price *string
	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Category, &a.Description, &price,
		&a.VideoURL, &a.ThumbnailURL, &a.CreatedAt); err != nil {
		return nil, err
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", *price, err)
		}
		a.Price = decimal.NewNullDecimal(d)
	}
	return &a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
