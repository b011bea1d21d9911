package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"adwatch/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "adwatch.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, email string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, PasswordHash: "x", Name: "Test", Role: domain.RoleMember}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	return u
}

func seedAd(t *testing.T, db *DB, userID int64, title, category string, at time.Time) *domain.Ad {
	t.Helper()
	ad := &domain.Ad{
		UserID:       userID,
		Title:        title,
		Category:     category,
		VideoURL:     "https://cdn.example.com/clip.mp4",
		ThumbnailURL: "https://cdn.example.com/thumb.jpg",
		CreatedAt:    at,
	}
	require.NoError(t, NewAdRepo(db).Create(context.Background(), ad))
	return ad
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Migrate())
}

func TestUserRepo(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	u := seedUser(t, db, "a@example.com")
	assert.NotZero(t, u.ID)

	got, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &domain.User{Email: "a@example.com", PasswordHash: "y", Name: "Dup", Role: domain.RoleMember})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdRepoListFiltersAndOrders(t *testing.T) {
	db := newTestDB(t)
	repo := NewAdRepo(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seedAd(t, db, u.ID, "Mountain Bike", "Sports", base)
	seedAd(t, db, u.ID, "Phone 100%", "Electronics", base.Add(time.Minute))
	seedAd(t, db, u.ID, "bike helmet", "Sports", base.Add(2*time.Minute))

	all, err := repo.List(ctx, domain.AdFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bike helmet", all[0].Title)
	assert.Equal(t, "Mountain Bike", all[2].Title)

	bikes, err := repo.List(ctx, domain.AdFilter{Query: "BIKE"})
	require.NoError(t, err)
	assert.Len(t, bikes, 2)

	sports, err := repo.List(ctx, domain.AdFilter{Query: "bike", Category: "Sports"})
	require.NoError(t, err)
	assert.Len(t, sports, 2)

	all2, err := repo.List(ctx, domain.AdFilter{Category: domain.CategoryAll})
	require.NoError(t, err)
	assert.Len(t, all2, 3)

	pct, err := repo.List(ctx, domain.AdFilter{Query: "100%"})
	require.NoError(t, err)
	assert.Len(t, pct, 1)

	none, err := repo.List(ctx, domain.AdFilter{Category: "Food"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAdRepoPriceRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewAdRepo(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	ad := &domain.Ad{
		UserID:       u.ID,
		Title:        "Lamp",
		Category:     "Home",
		Price:        decimal.NewNullDecimal(decimal.RequireFromString("19.99")),
		VideoURL:     "https://cdn.example.com/lamp.mp4",
		ThumbnailURL: "https://cdn.example.com/lamp.jpg",
	}
	require.NoError(t, repo.Create(ctx, ad))

	got, err := repo.GetByID(ctx, ad.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Price.Valid)
	assert.Equal(t, "19.99", got.Price.Decimal.String())

	free := seedAd(t, db, u.ID, "Free chair", "Home", time.Time{})
	got, err = repo.GetByID(ctx, free.ID)
	require.NoError(t, err)
	assert.False(t, got.Price.Valid)
}

func TestViewRepoRejectsSecondValidView(t *testing.T) {
	db := newTestDB(t)
	repo := NewViewRepo(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")
	ad := seedAd(t, db, u.ID, "Lamp", "Home", time.Time{})

	first := &domain.ViewRecord{UserID: u.ID, AdID: ad.ID, Code: "AB12CD", Valid: true}
	require.NoError(t, repo.Create(ctx, first))

	second := &domain.ViewRecord{UserID: u.ID, AdID: ad.ID, Code: "ZZ99ZZ", Valid: true}
	assert.ErrorIs(t, repo.Create(ctx, second), domain.ErrDuplicateView)

	// invalid rows are outside the unique index
	require.NoError(t, repo.Create(ctx, &domain.ViewRecord{UserID: u.ID, AdID: ad.ID, Code: "QQ11QQ"}))

	ok, err := repo.ExistsValid(ctx, u.ID, ad.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	views, err := repo.ListValid(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "AB12CD", views[0].Code)
}

func TestViewAndQuotaRepoCountSinceReset(t *testing.T) {
	db := newTestDB(t)
	views := NewViewRepo(db)
	quotas := NewQuotaRepo(db)
	ctx := context.Background()
	u := seedUser(t, db, "a@example.com")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ad := seedAd(t, db, u.ID, "Ad", "Home", time.Time{})
		v := &domain.ViewRecord{UserID: u.ID, AdID: ad.ID, Code: "AB12CD", Valid: true, ViewedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, views.Create(ctx, v))
	}

	since, err := quotas.LastReset(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, since.IsZero())

	n, err := views.CountValidSince(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, quotas.Reset(ctx, u.ID, base.Add(90*time.Minute)))
	require.NoError(t, quotas.Reset(ctx, u.ID, base.Add(30*time.Minute)))

	since, err = quotas.LastReset(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, since.Equal(base.Add(30*time.Minute)))

	n, err = views.CountValidSince(ctx, u.ID, since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
