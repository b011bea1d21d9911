package client

import (
	"context"
	"errors"
	"sync/atomic"

	"adwatch/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by Reload when a newer reload started meanwhile.
// Its result is discarded.
var ErrSuperseded = errors.New("reload superseded")

// State is one consistent load of the catalog and the viewer's progress
type State struct {
	Ads        []domain.Ad
	Views      []domain.ViewRecord
	Quota      *Quota
	Generation uint64
}

// Loader is the subset of Client a Refresher reads from
type Loader interface {
	ListAds(ctx context.Context, filter domain.AdFilter) ([]domain.Ad, error)
	Views(ctx context.Context) ([]domain.ViewRecord, error)
	Quota(ctx context.Context) (*Quota, error)
}

// Refresher reloads ads, views and quota concurrently. Only the newest reload
// may publish; older ones finish with ErrSuperseded.
type Refresher struct {
	src  Loader
	gen  atomic.Uint64
	last atomic.Pointer[State]
}

// NewRefresher creates a refresher over src
func NewRefresher(src Loader) *Refresher {
	return &Refresher{src: src}
}

// Reload fetches a fresh State for filter
func (r *Refresher) Reload(ctx context.Context, filter domain.AdFilter) (*State, error) {
	gen := r.gen.Add(1)

	st := &State{Generation: gen}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ads, err := r.src.ListAds(ctx, filter)
		st.Ads = ads
		return err
	})
	g.Go(func() error {
		views, err := r.src.Views(ctx)
		st.Views = views
		return err
	})
	g.Go(func() error {
		q, err := r.src.Quota(ctx)
		st.Quota = q
		return err
	})
	if err := g.Wait(); err != nil {
		if r.gen.Load() != gen {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	if r.gen.Load() != gen || !r.publish(st) {
		return nil, ErrSuperseded
	}
	return st, nil
}

// publish stores st unless an equal or newer generation is already current
func (r *Refresher) publish(st *State) bool {
	for {
		cur := r.last.Load()
		if cur != nil && cur.Generation >= st.Generation {
			return false
		}
		if r.last.CompareAndSwap(cur, st) {
			return true
		}
	}
}

// Current returns the last published State, nil before the first reload
func (r *Refresher) Current() *State {
	return r.last.Load()
}
