package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DTADMI/gamehub-api/internal/identity"
	"github.com/DTADMI/gamehub-api/internal/ratelimit"
)

func TestQuotaExceededWithinWindow(t *testing.T) {
	ctx := context.Background()
	counter := newFakeCounter()
	limiter := ratelimit.NewLimiter(counter, 300, 3, nil)

	for i := 0; i < 3; i++ {
		d := limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4")
		require.True(t, d.Allowed, "request %d", i+1)
		require.Equal(t, 3, d.Limit)
		require.Equal(t, 3-(i+1), d.Remaining)
	}

	denied := limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4")
	require.False(t, denied.Allowed)
	require.Equal(t, 0, denied.Remaining)
	require.Greater(t, denied.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, denied.RetryAfter, time.Minute)
}

func TestClassesCountedIndependently(t *testing.T) {
	ctx := context.Background()
	counter := newFakeCounter()
	limiter := ratelimit.NewLimiter(counter, 2, 1, nil)

	require.True(t, limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4").Allowed)
	require.False(t, limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4").Allowed)

	// The same address in the user class has its own counter.
	require.True(t, limiter.Check(ctx, ratelimit.ClassUser, "1.2.3.4").Allowed)
	require.True(t, limiter.Check(ctx, ratelimit.ClassUser, "1.2.3.4").Allowed)
	require.False(t, limiter.Check(ctx, ratelimit.ClassUser, "1.2.3.4").Allowed)
}

func TestFailOpenOnCounterError(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(erroringCounter{}, 300, 1, nil)

	for i := 0; i < 10; i++ {
		d := limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4")
		require.True(t, d.Allowed)
		require.Equal(t, 1, d.Limit)
	}
}

func TestMessageLimiterPerIdentity(t *testing.T) {
	ctx := context.Background()
	counter := newFakeCounter()
	limiter := ratelimit.NewMessageLimiter(counter, 2, 1, nil)

	alice := identity.Identity{UserID: 1, Email: "alice@example.com"}
	require.True(t, limiter.Allow(ctx, alice, "", ""))
	require.True(t, limiter.Allow(ctx, alice, "", ""))
	require.False(t, limiter.Allow(ctx, alice, "", ""))

	// A guest session gets the guest budget independently.
	guest := identity.Guest()
	require.True(t, limiter.Allow(ctx, guest, "sess-1", ""))
	require.False(t, limiter.Allow(ctx, guest, "sess-1", ""))
	require.True(t, limiter.Allow(ctx, guest, "sess-2", ""))
}

func TestResolveIdentityKeyPreference(t *testing.T) {
	alice := identity.Identity{UserID: 1, Email: "alice@example.com"}
	require.Equal(t, "user:alice@example.com", ratelimit.ResolveIdentityKey(alice, "sess-1", "1.2.3.4"))

	guest := identity.Guest()
	require.Equal(t, "sess:sess-1", ratelimit.ResolveIdentityKey(guest, "sess-1", "1.2.3.4"))
	require.Equal(t, "ip:1.2.3.4", ratelimit.ResolveIdentityKey(guest, "", "1.2.3.4, 10.0.0.1"))
	require.Equal(t, "anon:unknown", ratelimit.ResolveIdentityKey(guest, "", ""))
}

func TestLocalLimiterDeniesAtBurst(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLocalLimiter(300, 2)

	require.True(t, limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4").Allowed)
	require.True(t, limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4").Allowed)
	denied := limiter.Check(ctx, ratelimit.ClassGuest, "1.2.3.4")
	require.False(t, denied.Allowed)
	require.Equal(t, 2, denied.Limit)
}

// fakeCounter mimics the Redis counter: keys carry the window and values are
// atomic under the mutex.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

type erroringCounter struct{}

func (erroringCounter) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("backend unreachable")
}
