package watch

import (
	"errors"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// sequenceCodes hands out codes in order and counts calls
type sequenceCodes struct {
	codes []string
	calls int
}

func (s *sequenceCodes) Generate() (string, error) {
	if s.calls >= len(s.codes) {
		return "", errors.New("out of codes")
	}
	code := s.codes[s.calls]
	s.calls++
	return code, nil
}

type failingCodes struct{ failures int }

func (f *failingCodes) Generate() (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("entropy unavailable")
	}
	return "ZZ99ZZ", nil
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}
