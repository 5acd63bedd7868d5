// Package ratelimit bounds how often a client may call the chat proxy.
//
// Each client key owns a token bucket from golang.org/x/time/rate. Time is
// read from an injected clock.Clock and passed to the bucket explicitly, so a
// fake clock drives the limiter deterministically in tests.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"telecalc/internal/clock"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the client should wait before the next token
	// is available. Zero when Allowed.
	RetryAfter time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter is a set of per-key token buckets.
type Limiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	clock clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New returns a Limiter refilling perMinute tokens a minute into buckets of
// size burst. Buckets idle for longer than it takes to refill completely (and
// at least a minute) are dropped by Sweep.
func New(perMinute float64, burst int, clk clock.Clock) *Limiter {
	if burst < 1 {
		burst = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	limit := rate.Limit(perMinute / 60)

	ttl := time.Minute
	if limit > 0 {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > ttl {
			ttl = refill
		}
	}

	return &Limiter{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket if one is available. A denied call
// does not consume a token.
func (l *Limiter) Allow(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{RetryAfter: l.ttl}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// Sweep drops buckets idle for longer than the TTL and returns how many were
// removed. A dropped bucket is indistinguishable from a full one.
func (l *Limiter) Sweep() int {
	cutoff := l.clock.Now().Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run calls Sweep every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
