package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	viewedAt []time.Time
	reset    time.Time
	err      error
}

func (s *stubSource) CountValidSince(_ context.Context, _ int64, since time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, at := range s.viewedAt {
		if at.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *stubSource) LastReset(context.Context, int64) (time.Time, error) {
	return s.reset, nil
}

func TestIsQuotaMetBoundary(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	tr := NewTracker(src, 5)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for n := 0; n <= 7; n++ {
		met, err := tr.IsQuotaMet(ctx, 1)
		require.NoError(t, err)
		count, err := tr.Count(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, n, count)
		assert.Equal(t, n >= 5, met, "count=%d", n)
		src.viewedAt = append(src.viewedAt, base.Add(time.Duration(n)*time.Minute))
	}
}

func TestCounterHonoursLastReset(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{
		viewedAt: []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)},
		reset:    base.Add(90 * time.Minute),
	}
	c, err := NewTracker(src, 5).Counter(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Count)
	assert.Equal(t, 5, c.Required)
	assert.Equal(t, src.reset, c.LastResetAt)
	assert.Equal(t, 4, c.Remaining())
}

func TestCounterPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewTracker(&stubSource{err: boom}, 5).IsQuotaMet(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}
