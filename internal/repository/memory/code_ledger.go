// Package memory provides an in-process verification code ledger for single
// node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"adwatch/internal/repository"
)

type ledgerKey struct{ userID, adID int64 }

// CodeLedger implements repository.CodeLedger with a mutex guarded map of
// code sets. A zero expiry never expires.
type CodeLedger struct {
	mu    sync.Mutex
	codes map[ledgerKey]map[string]time.Time
	now   func() time.Time
}

// NewCodeLedger creates an empty ledger. now defaults to time.Now.
func NewCodeLedger(now func() time.Time) *CodeLedger {
	if now == nil {
		now = time.Now
	}
	return &CodeLedger{codes: make(map[ledgerKey]map[string]time.Time), now: now}
}

var _ repository.CodeLedger = (*CodeLedger)(nil)

func (l *CodeLedger) Issue(_ context.Context, userID, adID int64, code string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = l.now().Add(ttl)
	}
	k := ledgerKey{userID, adID}
	l.mu.Lock()
	defer l.mu.Unlock()
	held := l.codes[k]
	if held == nil {
		held = make(map[string]time.Time)
		l.codes[k] = held
	}
	held[code] = expiresAt
	return nil
}

func (l *CodeLedger) Holds(_ context.Context, userID, adID int64, code string) (bool, error) {
	k := ledgerKey{userID, adID}
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.codes[k][code]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && !l.now().Before(expiresAt) {
		delete(l.codes[k], code)
		if len(l.codes[k]) == 0 {
			delete(l.codes, k)
		}
		return false, nil
	}
	return true, nil
}

func (l *CodeLedger) Consume(_ context.Context, userID, adID int64) error {
	l.mu.Lock()
	delete(l.codes, ledgerKey{userID, adID})
	l.mu.Unlock()
	return nil
}

// Len returns the number of held codes, expired ones included
func (l *CodeLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, held := range l.codes {
		n += len(held)
	}
	return n
}
