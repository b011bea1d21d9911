// Package redis provides the Redis backed verification code ledger
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"adwatch/internal/repository"
)

const codePrefix = "adwatch:code:"

// noExpiry scores codes issued without a TTL
const noExpiry = float64(1 << 53)

// CodeLedger implements repository.CodeLedger with one sorted set per
// (user, ad): members are codes, scores their expiry in unix milliseconds.
// The key itself expires with its longest lived code.
type CodeLedger struct {
	client *goredis.Client
	now    func() time.Time
}

// LedgerOption configures a CodeLedger
type LedgerOption func(*CodeLedger)

// WithClock overrides time.Now for expiry scores
func WithClock(now func() time.Time) LedgerOption {
	return func(l *CodeLedger) { l.now = now }
}

func NewCodeLedger(client *goredis.Client, opts ...LedgerOption) repository.CodeLedger {
	l := &CodeLedger{client: client, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewClient connects to addr and pings it
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *CodeLedger) Issue(ctx context.Context, userID, adID int64, code string, ttl time.Duration) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := codeKey(userID, adID)
	now := l.now()
	score := noExpiry
	if ttl > 0 {
		score = float64(now.Add(ttl).UnixMilli())
	}

	var top *goredis.ZSliceCmd
	_, err := l.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", now.UnixMilli()))
		pipe.ZAdd(ctx, key, goredis.Z{Score: score, Member: code})
		top = pipe.ZRevRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add code: %w", err)
	}

	latest := score
	if zs := top.Val(); len(zs) > 0 {
		latest = zs[0].Score
	}
	if latest >= noExpiry {
		err = l.client.Persist(ctx, key).Err()
	} else {
		err = l.client.PExpireAt(ctx, key, time.UnixMilli(int64(latest))).Err()
	}
	if err != nil {
		return fmt.Errorf("expire codes: %w", err)
	}
	return nil
}

func (l *CodeLedger) Holds(ctx context.Context, userID, adID int64, code string) (bool, error) {
	if l.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	score, err := l.client.ZScore(ctx, codeKey(userID, adID), code).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get code: %w", err)
	}
	return score > float64(l.now().UnixMilli()), nil
}

func (l *CodeLedger) Consume(ctx context.Context, userID, adID int64) error {
	if l.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := l.client.Del(ctx, codeKey(userID, adID)).Err(); err != nil {
		return fmt.Errorf("delete codes: %w", err)
	}
	return nil
}

func codeKey(userID, adID int64) string {
	return fmt.Sprintf("%s%d:%d", codePrefix, userID, adID)
}
