package watch

import (
	"adwatch/internal/domain"
)

// GateState is the state of a verification gate
type GateState int

const (
	GateAwaitingInput GateState = iota
	GateMismatchRetry
	GateMatched
)

func (s GateState) String() string {
	switch s {
	case GateAwaitingInput:
		return "awaiting_input"
	case GateMismatchRetry:
		return "mismatch_retry"
	case GateMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// Outcome is the result of one submission
type Outcome int

const (
	Mismatch Outcome = iota
	Match
)

func (o Outcome) String() string {
	if o == Match {
		return "match"
	}
	return "mismatch"
}

// Gate compares submissions against the code captured at reveal time.
// Mismatches may be retried without limit.
type Gate struct {
	code      string
	state     GateState
	committed bool
	attempts  int
}

// NewGate opens a gate for code
func NewGate(code string) *Gate {
	return &Gate{code: code}
}

// Submit checks input by exact comparison. Once matched, every further
// submission fails with domain.ErrCodeConsumed.
func (g *Gate) Submit(input string) (Outcome, error) {
	if g.state == GateMatched {
		return Mismatch, domain.ErrCodeConsumed
	}
	g.attempts++
	if input != "" && input == g.code {
		g.state = GateMatched
		return Match, nil
	}
	g.state = GateMismatchRetry
	return Mismatch, nil
}

// Commit makes a match final once the view has been persisted
func (g *Gate) Commit() {
	if g.state == GateMatched {
		g.committed = true
	}
}

// Rollback returns an uncommitted match to AwaitingInput so the user can
// retry after a failed write. It reports whether anything changed.
func (g *Gate) Rollback() bool {
	if g.state != GateMatched || g.committed {
		return false
	}
	g.state = GateAwaitingInput
	return true
}

// State returns the current gate state
func (g *Gate) State() GateState { return g.state }

// Committed reports whether the match has been persisted
func (g *Gate) Committed() bool { return g.committed }

// Attempts returns the number of accepted submissions
func (g *Gate) Attempts() int { return g.attempts }
