package watch

import (
	"testing"

	"adwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateIsCaseSensitive(t *testing.T) {
	g := NewGate("AB12CD")

	outcome, err := g.Submit("ab12cd")
	require.NoError(t, err)
	assert.Equal(t, Mismatch, outcome)
	assert.Equal(t, GateMismatchRetry, g.State())

	outcome, err = g.Submit("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, Match, outcome)
	assert.Equal(t, GateMatched, g.State())
	assert.Equal(t, 2, g.Attempts())
}

func TestGateAllowsUnlimitedRetries(t *testing.T) {
	g := NewGate("AB12CD")
	for i := 0; i < 50; i++ {
		outcome, err := g.Submit("WRONG1")
		require.NoError(t, err)
		assert.Equal(t, Mismatch, outcome)
	}
	outcome, err := g.Submit("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, Match, outcome)
}

func TestGateRejectsAfterMatch(t *testing.T) {
	g := NewGate("AB12CD")
	_, err := g.Submit("AB12CD")
	require.NoError(t, err)

	_, err = g.Submit("AB12CD")
	assert.ErrorIs(t, err, domain.ErrCodeConsumed)
	_, err = g.Submit("other")
	assert.ErrorIs(t, err, domain.ErrCodeConsumed)
}

func TestGateEmptyInputNeverMatches(t *testing.T) {
	g := NewGate("")
	outcome, err := g.Submit("")
	require.NoError(t, err)
	assert.Equal(t, Mismatch, outcome)
}

func TestGateRollbackOnlyBeforeCommit(t *testing.T) {
	g := NewGate("AB12CD")
	assert.False(t, g.Rollback())

	_, err := g.Submit("AB12CD")
	require.NoError(t, err)
	assert.True(t, g.Rollback())
	assert.Equal(t, GateAwaitingInput, g.State())

	_, err = g.Submit("AB12CD")
	require.NoError(t, err)
	g.Commit()
	assert.True(t, g.Committed())
	assert.False(t, g.Rollback())
	assert.Equal(t, GateMatched, g.State())
}
