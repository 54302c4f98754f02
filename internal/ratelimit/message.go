package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/identity"
)

// MessageLimiter throttles realtime messages per resolved identity within a
// fixed wall-clock minute window. Unlike the HTTP limiter, keys are per
// individual caller rather than per class, because a single chatty socket
// must not be able to hide inside the guest tier.
type MessageLimiter struct {
	counter    Counter
	userLimit  int
	guestLimit int
	logger     *zap.Logger
	now        func() time.Time
}

// NewMessageLimiter creates the socket-message variant of the limiter.
func NewMessageLimiter(counter Counter, userPerMinute, guestPerMinute int, logger *zap.Logger) *MessageLimiter {
	if userPerMinute < 1 {
		userPerMinute = 1
	}
	if guestPerMinute < 1 {
		guestPerMinute = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageLimiter{
		counter:    counter,
		userLimit:  userPerMinute,
		guestLimit: guestPerMinute,
		logger:     logger,
		now:        time.Now,
	}
}

// Allow reports whether one more message from the caller fits in the current
// window. Counter backend failures admit the message; dropping gameplay
// traffic because Redis is down is the wrong trade.
func (l *MessageLimiter) Allow(ctx context.Context, id identity.Identity, sessionID, sourceIP string) bool {
	key := ResolveIdentityKey(id, sessionID, sourceIP)
	limit := l.guestLimit
	if id.IsAuthenticated() {
		limit = l.userLimit
	}

	now := l.now()
	window := now.UnixMilli() / windowLength.Milliseconds()
	counterKey := fmt.Sprintf("msg:rate:%d:%s", window, key)

	count, err := l.counter.IncrWindow(ctx, counterKey, windowRemainder(now))
	if err != nil {
		l.logger.Debug("message rate counter unavailable, admitting", zap.Error(err))
		return true
	}
	return count <= int64(limit)
}

// ResolveIdentityKey maps a caller to its counter identity: user id, then
// session id, then source IP, in that preference order.
func ResolveIdentityKey(id identity.Identity, sessionID, sourceIP string) string {
	if id.IsAuthenticated() {
		return "user:" + id.Email
	}
	if strings.TrimSpace(sessionID) != "" {
		return "sess:" + sessionID
	}
	if ip := firstForwardedAddr(sourceIP); ip != "" {
		return "ip:" + ip
	}
	return "anon:unknown"
}

func firstForwardedAddr(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}
