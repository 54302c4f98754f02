package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	key, err := DeriveKey("unit-test-secret")
	require.NoError(t, err)
	svc, err := NewService(key, ttl)
	require.NoError(t, err)
	return svc
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)

	for _, subject := range []string{"alice@example.com", "bob@sub.example.com", "42"} {
		issued, err := svc.Issue(subject)
		require.NoError(t, err)
		require.NotEmpty(t, issued.Token)
		require.True(t, issued.ExpiresAt.After(issued.IssuedAt))

		got, err := svc.Verify(issued.Token)
		require.NoError(t, err)
		require.Equal(t, subject, got)
	}
}

func TestIssueEmptySubject(t *testing.T) {
	svc := newTestService(t, time.Hour)

	_, err := svc.Issue("")
	require.ErrorIs(t, err, ErrInvalidSubject)

	_, err = svc.Issue("   ")
	require.ErrorIs(t, err, ErrInvalidSubject)
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestService(t, time.Minute)

	issued, err := svc.Issue("alice@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(issued.Token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := newTestService(t, time.Hour)

	issued, err := svc.Issue("alice@example.com")
	require.NoError(t, err)

	// Flip one byte at every position; no mutation may verify.
	raw := []byte(issued.Token)
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == issued.Token {
			continue
		}
		_, err := svc.Verify(string(mutated))
		require.Error(t, err, "tampered byte %d verified", i)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	svc := newTestService(t, time.Hour)
	issued, err := svc.Issue("alice@example.com")
	require.NoError(t, err)

	otherKey, err := DeriveKey("a-completely-different-secret")
	require.NoError(t, err)
	other, err := NewService(otherKey, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(issued.Token)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestService(t, time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := svc.Verify(raw)
		require.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}
