// Package repository defines interfaces for data persistence
package repository

import (
	"context"
	"time"

	"adwatch/internal/domain"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}

// AdRepository defines the interface for ad data operations
type AdRepository interface {
	Create(ctx context.Context, ad *domain.Ad) error
	GetByID(ctx context.Context, id int64) (*domain.Ad, error)
	List(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error)
}

// ViewRepository stores validated views. Create returns domain.ErrDuplicateView
// when a valid record for the (user, ad) pair already exists.
type ViewRepository interface {
	Create(ctx context.Context, view *domain.ViewRecord) error
	ExistsValid(ctx context.Context, userID, adID int64) (bool, error)
	ListValid(ctx context.Context, userID int64) ([]domain.ViewRecord, error)
	CountValidSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// QuotaRepository stores quota resets. A user without a reset has a zero time.
type QuotaRepository interface {
	LastReset(ctx context.Context, userID int64) (time.Time, error)
	Reset(ctx context.Context, userID int64, at time.Time) error
}

// CodeLedger holds the verification codes issued for a (user, ad) pair until
// they are consumed or expire. Every open session on the pair keeps its own
// code; issuing a held code again refreshes its TTL. Consume drops them all.
type CodeLedger interface {
	Issue(ctx context.Context, userID, adID int64, code string, ttl time.Duration) error
	Holds(ctx context.Context, userID, adID int64, code string) (bool, error)
	Consume(ctx context.Context, userID, adID int64) error
}

// Repositories bundles all repository interfaces
type Repositories struct {
	Users  UserRepository
	Ads    AdRepository
	Views  ViewRepository
	Quotas QuotaRepository
	Codes  CodeLedger
}
