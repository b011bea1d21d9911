// Package adstore is the authoritative persistence collaborator of the viewing
// workflow. It re-checks every gate server-side: ad existence, code validity,
// duplicate views and the creation quota.
package adstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adwatch/internal/domain"
	"adwatch/internal/quota"
	"adwatch/internal/repository"

	"go.uber.org/zap"
)

// Service implements the ad store operations on top of the repositories
type Service struct {
	repos *repository.Repositories
	quota *quota.Tracker
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a Service requiring requiredViews validated views before an ad
// can be created
func New(repos *repository.Repositories, requiredViews int, opts ...Option) (*Service, error) {
	if repos == nil || repos.Users == nil || repos.Ads == nil || repos.Views == nil ||
		repos.Quotas == nil || repos.Codes == nil {
		return nil, errors.New("adstore: incomplete repositories")
	}
	if requiredViews < 1 {
		return nil, fmt.Errorf("adstore: required views must be positive, got %d", requiredViews)
	}
	s := &Service{
		repos: repos,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	s.quota = quota.NewTracker(quotaSource{repos}, requiredViews)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequiredViews returns the quota threshold
func (s *Service) RequiredViews() int { return s.quota.Required() }

// ListAds returns the catalog filtered by filter, newest first
func (s *Service) ListAds(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error) {
	ads, err := s.repos.Ads.List(ctx, filter)
	if err != nil {
		return nil, domain.Transient("list ads", err)
	}
	return ads, nil
}

// GetAd returns one ad or domain.ErrAdNotFound
func (s *Service) GetAd(ctx context.Context, id int64) (*domain.Ad, error) {
	ad, err := s.repos.Ads.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Transient("get ad", err)
	}
	if ad == nil {
		return nil, domain.ErrAdNotFound
	}
	return ad, nil
}

// CreateAd validates draft and stores it for userID once the viewing quota is
// met. Validation runs before the quota check.
func (s *Service) CreateAd(ctx context.Context, userID int64, draft domain.AdDraft) (*domain.Ad, error) {
	if userID <= 0 {
		return nil, domain.ErrAuth
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	counter, err := s.quota.Counter(ctx, userID)
	if err != nil {
		return nil, domain.Transient("check quota", err)
	}
	if !counter.Met() {
		return nil, fmt.Errorf("%w: %d of %d validated views", domain.ErrQuotaNotMet, counter.Count, counter.Required)
	}

	ad := &domain.Ad{
		UserID:       userID,
		Title:        draft.Title,
		Category:     draft.Category,
		Description:  draft.Description,
		Price:        draft.Price,
		VideoURL:     draft.VideoURL,
		ThumbnailURL: draft.ThumbnailURL,
		CreatedAt:    s.now(),
	}
	if err := s.repos.Ads.Create(ctx, ad); err != nil {
		return nil, domain.Transient("create ad", err)
	}

	s.log.Info("ad created",
		zap.Int64("ad_id", ad.ID),
		zap.Int64("user_id", userID),
		zap.String("category", ad.Category))
	return ad, nil
}

// ListValidatedViews returns the valid view records of userID, newest first
func (s *Service) ListValidatedViews(ctx context.Context, userID int64) ([]domain.ViewRecord, error) {
	views, err := s.repos.Views.ListValid(ctx, userID)
	if err != nil {
		return nil, domain.Transient("list views", err)
	}
	return views, nil
}

// IssueCode records the code revealed to userID for adID until ttl elapses
func (s *Service) IssueCode(ctx context.Context, userID, adID int64, code string, ttl time.Duration) error {
	if err := s.repos.Codes.Issue(ctx, userID, adID, code, ttl); err != nil {
		return domain.Transient("issue code", err)
	}
	return nil
}

// RecordView persists a validated view. An existing valid view of the ad is
// a duplicate whatever the code; otherwise the code must be one the ledger
// holds for (userID, adID). Every held code of the pair is consumed once a
// view was recorded or found.
func (s *Service) RecordView(ctx context.Context, userID, adID int64, code string) (*domain.ViewRecord, error) {
	if userID <= 0 {
		return nil, domain.ErrAuth
	}
	if _, err := s.GetAd(ctx, adID); err != nil {
		return nil, err
	}

	seen, err := s.repos.Views.ExistsValid(ctx, userID, adID)
	if err != nil {
		return nil, domain.Transient("check view", err)
	}
	if seen {
		s.consume(ctx, userID, adID)
		return nil, domain.ErrDuplicateView
	}

	held, err := s.repos.Codes.Holds(ctx, userID, adID, code)
	if err != nil {
		return nil, domain.Transient("read code", err)
	}
	if !held || code == "" {
		return nil, domain.ErrInvalidCode
	}

	view := &domain.ViewRecord{
		UserID:   userID,
		AdID:     adID,
		ViewedAt: s.now(),
		Code:     code,
		Valid:    true,
	}
	err = s.repos.Views.Create(ctx, view)
	switch {
	case errors.Is(err, domain.ErrDuplicateView):
		s.consume(ctx, userID, adID)
		return nil, err
	case err != nil:
		return nil, domain.Transient("record view", err)
	}
	s.consume(ctx, userID, adID)
	return view, nil
}

// GetQuota returns the quota counter of userID
func (s *Service) GetQuota(ctx context.Context, userID int64) (*domain.QuotaCounter, error) {
	c, err := s.quota.Counter(ctx, userID)
	if err != nil {
		return nil, domain.Transient("get quota", err)
	}
	return c, nil
}

// ResetQuota zeroes the count of userID by moving its reset time to now.
// Views recorded before the reset still block duplicates.
func (s *Service) ResetQuota(ctx context.Context, userID int64) (*domain.QuotaCounter, error) {
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Transient("get user", err)
	}
	if u == nil {
		return nil, &domain.FieldError{Field: "userId", Message: "does not exist"}
	}
	if err := s.repos.Quotas.Reset(ctx, userID, s.now()); err != nil {
		return nil, domain.Transient("reset quota", err)
	}
	s.log.Info("quota reset", zap.Int64("user_id", userID))
	return s.GetQuota(ctx, userID)
}

func (s *Service) consume(ctx context.Context, userID, adID int64) {
	if err := s.repos.Codes.Consume(ctx, userID, adID); err != nil {
		s.log.Warn("consume code failed",
			zap.Int64("user_id", userID),
			zap.Int64("ad_id", adID),
			zap.Error(err))
	}
}

type quotaSource struct {
	repos *repository.Repositories
}

func (q quotaSource) CountValidSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return q.repos.Views.CountValidSince(ctx, userID, since)
}

func (q quotaSource) LastReset(ctx context.Context, userID int64) (time.Time, error) {
	return q.repos.Quotas.LastReset(ctx, userID)
}
