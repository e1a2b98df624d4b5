// Package ratelimit implements the per-client save quota: a sliding window
// that resets on expiry, backed by a pluggable counter store so counters can
// live in memory (tests), on disk (single instance) or in Redis (shared
// deployments).
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned when a client has used up its window quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// Counter is one client's window state.
type Counter struct {
	WindowStart time.Time `json:"windowStart"`
	Count       int       `json:"count"`
}

// CounterStore persists per-client counters. Get returns (nil, nil) when no
// counter exists for the key.
type CounterStore interface {
	Get(ctx context.Context, key string) (*Counter, error)
	Put(ctx context.Context, key string, c *Counter) error
}

// Limiter admits or rejects requests per client key. This is a best-effort
// spam guard scoped to the apparent client address, not a security boundary.
// Store failures reject the request (fail closed).
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New returns a Limiter allowing `limit` admits per `window` for each key.
func New(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:    store,
		limit:    limit,
		window:   window,
		now:      time.Now,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// ClientKey derives a stable counter key from a client network address.
func ClientKey(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}

// Admit performs the read-modify-write for one request. Concurrent admits for
// the same key are serialized under a per-key lock; without it two requests
// could both read a stale counter and both slip past the limit.
func (l *Limiter) Admit(ctx context.Context, clientKey string) error {
	lock := l.lockFor(clientKey)
	lock.Lock()
	defer lock.Unlock()

	c, err := l.store.Get(ctx, clientKey)
	if err != nil {
		return fmt.Errorf("rate counter read: %w", err)
	}

	now := l.now()
	if c == nil || now.Sub(c.WindowStart) >= l.window {
		c = &Counter{WindowStart: now, Count: 1}
	} else {
		if c.Count >= l.limit {
			return ErrRateLimited
		}
		c.Count++
	}

	if err := l.store.Put(ctx, clientKey, c); err != nil {
		return fmt.Errorf("rate counter write: %w", err)
	}
	return nil
}

func (l *Limiter) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.keyLocks[key]
	if !ok {
		lk = &sync.Mutex{}
		l.keyLocks[key] = lk
	}
	return lk
}
