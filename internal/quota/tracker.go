// Package quota derives a user's validated-view count and the quota predicate
// that unlocks ad creation.
package quota

import (
	"context"
	"fmt"
	"time"

	"adwatch/internal/domain"
)

// Source reads the persisted view records a count is derived from
type Source interface {
	CountValidSince(ctx context.Context, userID int64, since time.Time) (int, error)
	LastReset(ctx context.Context, userID int64) (time.Time, error)
}

// Tracker recomputes counts from the Source on every call; nothing is cached.
type Tracker struct {
	src      Source
	required int
}

// NewTracker creates a tracker requiring `required` validated views
func NewTracker(src Source, required int) *Tracker {
	return &Tracker{src: src, required: required}
}

// Required returns the number of validated views that unlocks ad creation
func (t *Tracker) Required() int { return t.required }

// Count returns the validated views of userID since the last reset
func (t *Tracker) Count(ctx context.Context, userID int64) (int, error) {
	c, err := t.Counter(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.Count, nil
}

// IsQuotaMet reports whether Count(userID) >= Required()
func (t *Tracker) IsQuotaMet(ctx context.Context, userID int64) (bool, error) {
	c, err := t.Counter(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.Met(), nil
}

// Counter returns the full quota counter of userID
func (t *Tracker) Counter(ctx context.Context, userID int64) (*domain.QuotaCounter, error) {
	since, err := t.src.LastReset(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read quota reset: %w", err)
	}
	n, err := t.src.CountValidSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("count validated views: %w", err)
	}
	return &domain.QuotaCounter{
		UserID:      userID,
		Count:       n,
		Required:    t.required,
		LastResetAt: since,
	}, nil
}
