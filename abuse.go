// ABOUTME: Per-credential token-bucket limiter backing the DynDNS2 "abuse" response.
// ABOUTME: Buckets live in process memory and are dropped once idle.

package dyndns53

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 30 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// AbuseLimiter rate limits updates per username.
type AbuseLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*limiterEntry
	now     func() time.Time
}

// NewAbuseLimiter allows each credential perMinute updates per minute on
// average, with bursts of up to burst updates.
func NewAbuseLimiter(perMinute float64, burst int) *AbuseLimiter {
	return &AbuseLimiter{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		buckets: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow consumes one token for user and reports an Abuse error when the
// bucket is empty.
func (l *AbuseLimiter) Allow(user string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	e, ok := l.buckets[user]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[user] = e
	}
	e.lastSeen = now

	if !e.lim.AllowN(now, 1) {
		return newError(KindAbuse, "user %q exceeded the update rate", user)
	}
	return nil
}

// sweepLocked drops buckets idle for longer than limiterIdle. Caller holds mu.
func (l *AbuseLimiter) sweepLocked(now time.Time) {
	for user, e := range l.buckets {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(l.buckets, user)
		}
	}
}
