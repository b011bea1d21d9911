package watch

import (
	"time"

	"adwatch/internal/domain"
)

// Session is the ephemeral state of one open viewing dialog: the tracker,
// the issued code and, once the dialog was closed, the verification gate.
// It is owned by exactly one dialog and is not safe for concurrent use.
type Session struct {
	adID    int64
	codes   CodeGenerator
	tracker *Tracker
	code    string
	gate    *Gate
	closed  bool
}

// State is a read-only view of a Session
type State struct {
	AdID      int64
	Elapsed   time.Duration
	Playing   bool
	Revealed  bool
	Code      string // empty outside the display window
	Closable  bool
	Closed    bool
	Completed bool
	Gate      GateState
	Consumed  bool
	Attempts  int
}

// NewSession starts a session for adID
func NewSession(adID int64, cfg Config, codes CodeGenerator, now func() time.Time) *Session {
	if codes == nil {
		codes = RandomCodes{}
	}
	s := &Session{adID: adID, codes: codes}
	s.tracker = NewTracker(cfg, s.Issue, now)
	return s
}

// Issue returns the session's code, generating it on first call only
func (s *Session) Issue() (string, error) {
	if s.code != "" {
		return s.code, nil
	}
	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}
	s.code = code
	return code, nil
}

// Tracker exposes playback tracking
func (s *Session) Tracker() *Tracker { return s.tracker }

// AdID returns the target ad
func (s *Session) AdID() int64 { return s.adID }

// Code returns the issued code, empty before reveal
func (s *Session) Code() string { return s.code }

// Close ends playback and opens the verification gate. Before the minimum
// watch time it fails with domain.ErrNotCloseEligible and changes nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if !s.tracker.RequestClose() {
		return domain.ErrNotCloseEligible
	}
	code, err := s.Issue()
	if err != nil {
		return err
	}
	s.closed = true
	s.tracker.playing = false
	s.gate = NewGate(code)
	return nil
}

// Submit forwards input to the verification gate
func (s *Session) Submit(input string) (Outcome, error) {
	if !s.closed {
		return Mismatch, domain.ErrGateClosed
	}
	return s.gate.Submit(input)
}

// Commit finalizes a match after the view was persisted
func (s *Session) Commit() {
	if s.gate != nil {
		s.gate.Commit()
	}
}

// Rollback reopens the gate after a failed write
func (s *Session) Rollback() bool {
	return s.gate != nil && s.gate.Rollback()
}

// Consumed reports whether the code has produced a match
func (s *Session) Consumed() bool {
	return s.gate != nil && s.gate.State() == GateMatched
}

// State returns a snapshot of the session
func (s *Session) State() State {
	st := State{
		AdID:      s.adID,
		Elapsed:   s.tracker.Elapsed(),
		Playing:   s.tracker.Playing(),
		Revealed:  s.tracker.Revealed(),
		Closable:  s.tracker.Closable(),
		Closed:    s.closed,
		Completed: s.tracker.Completed(),
		Consumed:  s.Consumed(),
	}
	// shown between reveal and close eligibility only
	if st.Revealed && !st.Closable && !st.Closed {
		st.Code = s.code
	}
	if s.gate != nil {
		st.Gate = s.gate.State()
		st.Attempts = s.gate.Attempts()
	}
	return st
}
