package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Class is the caller tier the quota applies to.
type Class string

const (
	ClassUser  Class = "user"
	ClassGuest Class = "guest"
)

const windowLength = time.Minute

// Decision is the outcome of an admission check, with the header values the
// HTTP layer emits on every response.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Counter is the shared windowed counter backend. IncrWindow atomically
// increments key and, when this is the first increment, arranges for the key
// to disappear after ttl. The backend is the synchronization point; a
// read-then-write would race across processes.
type Counter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Admitter is the admission-control surface the HTTP layer consumes.
type Admitter interface {
	Check(ctx context.Context, class Class, identity string) Decision
}

// Limiter enforces fixed-window quotas per caller class. Windows are keyed by
// floor(now_ms / 60000) so all processes sharing the counter agree on
// boundaries. Counter errors fail open: admission never depends on the
// counter backend being up.
type Limiter struct {
	counter    Counter
	userLimit  int
	guestLimit int
	logger     *zap.Logger
	now        func() time.Time
}

var _ Admitter = (*Limiter)(nil)

// NewLimiter creates a limiter for the provided per-minute budgets.
func NewLimiter(counter Counter, userPerMinute, guestPerMinute int, logger *zap.Logger) *Limiter {
	if userPerMinute < 1 {
		userPerMinute = 1
	}
	if guestPerMinute < 1 {
		guestPerMinute = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		counter:    counter,
		userLimit:  userPerMinute,
		guestLimit: guestPerMinute,
		logger:     logger,
		now:        time.Now,
	}
}

// Check increments the caller's counter for the current window and decides
// admission. Safe for concurrent use.
func (l *Limiter) Check(ctx context.Context, class Class, identity string) Decision {
	limit := l.guestLimit
	if class == ClassUser {
		limit = l.userLimit
	}

	now := l.now()
	window := now.UnixMilli() / windowLength.Milliseconds()
	retryAfter := windowRemainder(now)
	key := fmt.Sprintf("rate:%s:%d:%s", class, window, identity)

	count, err := l.counter.IncrWindow(ctx, key, retryAfter)
	if err != nil {
		// Fail open: availability beats strict quota enforcement here.
		l.logger.Debug("rate counter unavailable, admitting", zap.Error(err))
		return Decision{Allowed: true, Limit: limit, Remaining: limit, RetryAfter: retryAfter}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    count <= int64(limit),
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}
}

// windowRemainder is the time left until the current minute window rolls
// over, floored to at least one second so Redis TTLs stay positive.
func windowRemainder(now time.Time) time.Duration {
	ms := now.UnixMilli()
	next := (ms/windowLength.Milliseconds() + 1) * windowLength.Milliseconds()
	remainder := time.Duration(next-ms) * time.Millisecond
	if remainder < time.Second {
		return time.Second
	}
	return remainder
}
