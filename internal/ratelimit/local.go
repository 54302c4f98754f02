package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ Admitter = (*LocalLimiter)(nil)

// LocalLimiter is the in-process fallback used when no shared counter backend
// is configured (single-instance deployments, tests, local dev). It cannot
// coordinate across processes, so production deployments behind a load
// balancer should configure Redis instead.
type LocalLimiter struct {
	userLimit  int
	guestLimit int
	idle       time.Duration
	mu         sync.Mutex
	callers    map[string]*localCaller
}

type localCaller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates a limiter for the provided per-minute budgets.
func NewLocalLimiter(userPerMinute, guestPerMinute int) *LocalLimiter {
	if userPerMinute < 1 {
		userPerMinute = 1
	}
	if guestPerMinute < 1 {
		guestPerMinute = 1
	}
	return &LocalLimiter{
		userLimit:  userPerMinute,
		guestLimit: guestPerMinute,
		idle:       5 * time.Minute,
		callers:    make(map[string]*localCaller),
	}
}

// Check admits the request if the caller's token bucket has capacity.
func (l *LocalLimiter) Check(ctx context.Context, class Class, identity string) Decision {
	limit := l.guestLimit
	if class == ClassUser {
		limit = l.userLimit
	}

	limiter := l.caller(string(class)+":"+identity, limit)
	tokens := int(limiter.Tokens())
	if tokens < 0 {
		tokens = 0
	}

	if !limiter.Allow() {
		return Decision{Limit: limit, Remaining: 0, RetryAfter: windowLength}
	}
	remaining := tokens - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: limit, Remaining: remaining}
}

func (l *LocalLimiter) caller(key string, perMinute int) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.callers[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	l.callers[key] = &localCaller{limiter: limiter, lastSeen: now}
	l.evictIdleLocked(now)
	return limiter
}

func (l *LocalLimiter) evictIdleLocked(now time.Time) {
	for key, entry := range l.callers {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.callers, key)
		}
	}
}
