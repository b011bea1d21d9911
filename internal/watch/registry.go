package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adwatch/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long an idle session survives before Sweep drops it
const DefaultSessionTTL = 30 * time.Minute

// Store is the persistence collaborator the registry writes through
type Store interface {
	GetAd(ctx context.Context, id int64) (*domain.Ad, error)
	IssueCode(ctx context.Context, userID, adID int64, code string, ttl time.Duration) error
	RecordView(ctx context.Context, userID, adID int64, code string) (*domain.ViewRecord, error)
	GetQuota(ctx context.Context, userID int64) (*domain.QuotaCounter, error)
}

// Viewer is the authenticated user driving sessions. It is built per request
// from the identity provider and passed explicitly.
type Viewer struct {
	UserID int64
	Email  string
}

// Valid reports whether the viewer is authenticated
func (v Viewer) Valid() bool { return v.UserID > 0 }

// InputKind is a playback event reported by the presentation layer
type InputKind string

const (
	InputPlay     InputKind = "play"
	InputPause    InputKind = "pause"
	InputProgress InputKind = "progress"
	InputSeek     InputKind = "seek"
	InputEnded    InputKind = "ended"
	InputMute     InputKind = "mute"
	InputVolume   InputKind = "volume"
	InputResize   InputKind = "resize"
)

// Input is one playback event with the playhead position
type Input struct {
	Kind     InputKind
	Position time.Duration
}

// Snapshot is a session state addressed by its registry id
type Snapshot struct {
	ID uuid.UUID
	State
}

// VerifyResult is the outcome of a verification attempt. Record and Quota are
// set on a match; Quota may be nil if recomputing it failed.
type VerifyResult struct {
	Snapshot Snapshot
	Outcome  Outcome
	Record   *domain.ViewRecord
	Quota    *domain.QuotaCounter
}

type entry struct {
	mu      sync.Mutex
	owner   int64
	session *Session
	touched atomic.Int64
}

// Registry hosts the open sessions of all viewers. Events for one session are
// serialized by a per-session lock.
type Registry struct {
	cfg   Config
	store Store
	codes CodeGenerator
	log   *zap.Logger
	now   func() time.Time
	ttl   time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithCodeGenerator overrides RandomCodes
func WithCodeGenerator(g CodeGenerator) Option {
	return func(r *Registry) { r.codes = g }
}

// WithSessionTTL overrides DefaultSessionTTL
func WithSessionTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry validates cfg and creates an empty registry
func NewRegistry(cfg Config, store Store, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}
	if store == nil {
		return nil, errors.New("watch store is nil")
	}
	r := &Registry{
		cfg:      cfg,
		store:    store,
		codes:    RandomCodes{},
		log:      zap.NewNop(),
		now:      time.Now,
		ttl:      DefaultSessionTTL,
		sessions: make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the validated configuration
func (r *Registry) Config() Config { return r.cfg }

// Open starts a session for adID
func (r *Registry) Open(ctx context.Context, v Viewer, adID int64) (Snapshot, error) {
	if !v.Valid() {
		return Snapshot{}, domain.ErrAuth
	}
	if _, err := r.store.GetAd(ctx, adID); err != nil {
		return Snapshot{}, err
	}

	id := uuid.New()
	e := &entry{
		owner:   v.UserID,
		session: NewSession(adID, r.cfg, r.codes, r.now),
	}
	e.touched.Store(r.now().UnixNano())

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	r.log.Debug("viewing session opened",
		zap.String("session_id", id.String()),
		zap.Int64("user_id", v.UserID),
		zap.Int64("ad_id", adID))

	return Snapshot{ID: id, State: e.session.State()}, nil
}

// Get returns the current state of a session
func (r *Registry) Get(v Viewer, id uuid.UUID) (Snapshot, error) {
	e, err := r.lookup(v, id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{ID: id, State: e.session.State()}, nil
}

// Apply feeds one playback event to the session tracker
func (r *Registry) Apply(ctx context.Context, v Viewer, id uuid.UUID, in Input) (Snapshot, []Event, error) {
	e, err := r.lookup(v, id)
	if err != nil {
		return Snapshot{}, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched.Store(r.now().UnixNano())

	s := e.session
	if s.closed {
		return Snapshot{ID: id, State: s.State()}, nil, nil
	}

	var events []Event
	t := s.Tracker()
	switch in.Kind {
	case InputPlay:
		events, err = t.Play(in.Position)
	case InputPause:
		events, err = t.Pause(in.Position)
	case InputProgress:
		events, err = t.Progress(in.Position)
	case InputSeek:
		t.Seek(in.Position)
	case InputEnded:
		events, err = t.Ended(in.Position)
	case InputMute, InputVolume, InputResize:
		// presentation only
	default:
		return Snapshot{}, nil, &domain.FieldError{Field: "kind", Message: "is not a playback event"}
	}
	if err != nil {
		return Snapshot{ID: id, State: s.State()}, events, err
	}

	for _, ev := range events {
		if ev.Kind == EventCodeAppear {
			r.syncCode(ctx, e, id)
		}
	}
	return Snapshot{ID: id, State: s.State()}, events, nil
}

// Close opens the verification gate once the minimum watch time was reached
func (r *Registry) Close(ctx context.Context, v Viewer, id uuid.UUID) (Snapshot, error) {
	e, err := r.lookup(v, id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched.Store(r.now().UnixNano())

	if err := e.session.Close(); err != nil {
		return Snapshot{ID: id, State: e.session.State()}, err
	}
	r.syncCode(ctx, e, id)
	return Snapshot{ID: id, State: e.session.State()}, nil
}

// Verify submits input to the gate. On a match the session's code is issued
// again, the view persisted through the store and the quota recomputed; a
// failed write other than a duplicate reopens the gate.
func (r *Registry) Verify(ctx context.Context, v Viewer, id uuid.UUID, input string) (VerifyResult, error) {
	e, err := r.lookup(v, id)
	if err != nil {
		return VerifyResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched.Store(r.now().UnixNano())

	s := e.session
	outcome, err := s.Submit(input)
	if err != nil {
		return VerifyResult{Snapshot: Snapshot{ID: id, State: s.State()}}, err
	}
	if outcome == Mismatch {
		return VerifyResult{Snapshot: Snapshot{ID: id, State: s.State()}, Outcome: Mismatch}, nil
	}

	// re-issue so the ledger entry lives as long as the session
	if err := r.store.IssueCode(ctx, v.UserID, s.AdID(), s.Code(), r.ttl); err != nil {
		s.Rollback()
		return VerifyResult{Snapshot: Snapshot{ID: id, State: s.State()}}, err
	}

	record, err := r.store.RecordView(ctx, v.UserID, s.AdID(), input)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateView) {
			s.Commit()
		} else {
			s.Rollback()
		}
		r.log.Warn("record view failed",
			zap.String("session_id", id.String()),
			zap.Int64("user_id", v.UserID),
			zap.Int64("ad_id", s.AdID()),
			zap.Error(err))
		return VerifyResult{Snapshot: Snapshot{ID: id, State: s.State()}}, err
	}
	s.Commit()

	res := VerifyResult{
		Snapshot: Snapshot{ID: id, State: s.State()},
		Outcome:  Match,
		Record:   record,
	}
	quota, err := r.store.GetQuota(ctx, v.UserID)
	if err != nil {
		r.log.Warn("quota recompute failed", zap.Int64("user_id", v.UserID), zap.Error(err))
	} else {
		res.Quota = quota
	}

	r.log.Info("view validated",
		zap.String("session_id", id.String()),
		zap.Int64("user_id", v.UserID),
		zap.Int64("ad_id", s.AdID()))
	return res, nil
}

// Discard drops a session, whether it succeeded or was cancelled
func (r *Registry) Discard(v Viewer, id uuid.UUID) error {
	if _, err := r.lookup(v, id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// DropViewer discards every session of userID and returns how many there were
func (r *Registry) DropViewer(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.owner == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Sweep discards sessions idle for longer than the TTL
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.touched.Load() < cutoff {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run sweeps idle sessions every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.log.Info("expired viewing sessions dropped", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) lookup(v Viewer, id uuid.UUID) (*entry, error) {
	if !v.Valid() {
		return nil, domain.ErrAuth
	}
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || e.owner != v.UserID {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

// syncCode stores the revealed code in the ledger, refreshing its TTL.
// Failure is retried on close and verify.
func (r *Registry) syncCode(ctx context.Context, e *entry, id uuid.UUID) {
	s := e.session
	if err := r.store.IssueCode(ctx, e.owner, s.AdID(), s.Code(), r.ttl); err != nil {
		r.log.Warn("store verification code failed",
			zap.String("session_id", id.String()),
			zap.Error(err))
	}
}
