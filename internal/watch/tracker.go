package watch

import (
	"time"
)

// EventKind identifies a threshold crossing raised by the Tracker
type EventKind int

const (
	EventCodeAppear EventKind = iota + 1
	EventCloseEligible
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventCodeAppear:
		return "code_appear"
	case EventCloseEligible:
		return "close_eligible"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is raised at most once per kind and session
type Event struct {
	Kind EventKind
	Code string // set for EventCodeAppear
}

// Tracker accumulates played duration of one viewing session and raises
// threshold events. It is not safe for concurrent use.
//
// Each progress report while playing credits the smaller of the playhead
// advance and the wall-clock time since the previous report, so seeking
// forward never credits more than the time that really passed.
type Tracker struct {
	reveal   time.Duration
	minWatch time.Duration
	issue    func() (string, error)
	now      func() time.Time

	playing bool
	lastAt  time.Time
	lastPos time.Duration
	elapsed time.Duration

	revealed  bool
	closable  bool
	completed bool
}

// NewTracker creates a tracker. issue is called once, when the reveal threshold
// is first reached; a failing issue is retried on the next report.
func NewTracker(cfg Config, issue func() (string, error), now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		reveal:   cfg.RevealThreshold,
		minWatch: cfg.MinWatchTime,
		issue:    issue,
		now:      now,
	}
}

// Play starts or resumes accumulation from pos
func (t *Tracker) Play(pos time.Duration) ([]Event, error) {
	if t.playing {
		return t.Progress(pos)
	}
	t.playing = true
	t.lastAt = t.now()
	t.lastPos = pos
	return t.check()
}

// Pause credits playback up to pos and suspends accumulation
func (t *Tracker) Pause(pos time.Duration) ([]Event, error) {
	events, err := t.Progress(pos)
	t.playing = false
	return events, err
}

// Progress reports the current playhead position. Safe to call more often than
// the media engine strictly requires.
func (t *Tracker) Progress(pos time.Duration) ([]Event, error) {
	if t.playing {
		now := t.now()
		wall := now.Sub(t.lastAt)
		advance := pos - t.lastPos
		if advance > 0 && wall > 0 {
			if advance < wall {
				t.elapsed += advance
			} else {
				t.elapsed += wall
			}
		}
		t.lastAt = now
		t.lastPos = pos
	}
	return t.check()
}

// Seek moves the playhead without crediting any watch time
func (t *Tracker) Seek(pos time.Duration) {
	t.lastAt = t.now()
	t.lastPos = pos
}

// Ended reports natural end of playback
func (t *Tracker) Ended(pos time.Duration) ([]Event, error) {
	events, err := t.Pause(pos)
	if !t.completed {
		t.completed = true
		events = append(events, Event{Kind: EventComplete})
	}
	return events, err
}

// RequestClose reports whether the dialog may be closed now
func (t *Tracker) RequestClose() bool {
	return t.closable
}

// Elapsed returns the accumulated played duration
func (t *Tracker) Elapsed() time.Duration { return t.elapsed }

// Playing reports whether accumulation is running
func (t *Tracker) Playing() bool { return t.playing }

// Revealed reports whether the code appeared
func (t *Tracker) Revealed() bool { return t.revealed }

// Closable reports whether the minimum watch time was reached
func (t *Tracker) Closable() bool { return t.closable }

// Completed reports whether playback ended naturally
func (t *Tracker) Completed() bool { return t.completed }

func (t *Tracker) check() ([]Event, error) {
	var events []Event
	if !t.revealed && t.elapsed >= t.reveal {
		code, err := t.issue()
		if err != nil {
			return events, err
		}
		t.revealed = true
		events = append(events, Event{Kind: EventCodeAppear, Code: code})
	}
	if t.revealed && !t.closable && t.elapsed >= t.minWatch {
		t.closable = true
		events = append(events, Event{Kind: EventCloseEligible})
	}
	return events, nil
}
