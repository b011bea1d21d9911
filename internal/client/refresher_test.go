package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	mu      sync.Mutex
	ads     []domain.Ad
	quota   int
	gate    chan struct{} // blocks ListAds while non-nil
	started chan struct{}
	viewErr error
}

func (s *stubLoader) ListAds(ctx context.Context, _ domain.AdFilter) ([]domain.Ad, error) {
	s.mu.Lock()
	gate, ads := s.gate, s.ads
	s.mu.Unlock()
	if gate != nil {
		s.started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return ads, nil
}

func (s *stubLoader) Views(context.Context) ([]domain.ViewRecord, error) {
	if s.viewErr != nil {
		return nil, s.viewErr
	}
	return []domain.ViewRecord{{ID: 1, AdID: 1, Valid: true}}, nil
}

func (s *stubLoader) Quota(context.Context) (*Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Quota{Count: s.quota, Required: 5}, nil
}

func TestRefresherPublishesState(t *testing.T) {
	src := &stubLoader{ads: []domain.Ad{{ID: 1}, {ID: 2}}, quota: 1}
	r := NewRefresher(src)
	assert.Nil(t, r.Current())

	st, err := r.Reload(context.Background(), domain.AdFilter{})
	require.NoError(t, err)
	assert.Len(t, st.Ads, 2)
	assert.Len(t, st.Views, 1)
	assert.Equal(t, 1, st.Quota.Count)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Same(t, st, r.Current())
}

func TestRefresherDiscardsSupersededReload(t *testing.T) {
	gate := make(chan struct{})
	src := &stubLoader{ads: []domain.Ad{{ID: 1}}, gate: gate, started: make(chan struct{}, 1)}
	r := NewRefresher(src)

	type result struct {
		st  *State
		err error
	}
	first := make(chan result, 1)
	go func() {
		st, err := r.Reload(context.Background(), domain.AdFilter{})
		first <- result{st, err}
	}()

	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first reload did not start")
	}

	src.mu.Lock()
	src.gate = nil
	src.ads = []domain.Ad{{ID: 1}, {ID: 2}, {ID: 3}}
	src.quota = 4
	src.mu.Unlock()

	second, err := r.Reload(context.Background(), domain.AdFilter{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)

	close(gate)
	res := <-first
	assert.ErrorIs(t, res.err, ErrSuperseded)
	assert.Nil(t, res.st)

	cur := r.Current()
	require.NotNil(t, cur)
	assert.Equal(t, uint64(2), cur.Generation)
	assert.Len(t, cur.Ads, 3)
	assert.Equal(t, 4, cur.Quota.Count)
}

func TestRefresherKeepsLastStateOnError(t *testing.T) {
	src := &stubLoader{ads: []domain.Ad{{ID: 1}}}
	r := NewRefresher(src)
	st, err := r.Reload(context.Background(), domain.AdFilter{})
	require.NoError(t, err)

	src.viewErr = errors.New("boom")
	_, err = r.Reload(context.Background(), domain.AdFilter{})
	assert.EqualError(t, err, "boom")
	assert.Same(t, st, r.Current())
}

func TestRefresherNeverPublishesOlderGeneration(t *testing.T) {
	r := NewRefresher(&stubLoader{})
	newer := &State{Generation: 2}
	older := &State{Generation: 1}

	require.True(t, r.publish(newer))
	assert.False(t, r.publish(older))
	assert.False(t, r.publish(&State{Generation: 2}))
	assert.Same(t, newer, r.Current())

	var wg sync.WaitGroup
	for g := uint64(3); g <= 50; g++ {
		wg.Add(1)
		go func(g uint64) {
			defer wg.Done()
			r.publish(&State{Generation: g})
		}(g)
	}
	wg.Wait()
	assert.Equal(t, uint64(50), r.Current().Generation)
}
