// Package federation verifies identity assertions minted by external
// providers so the exchange endpoint can turn them into first-party sessions.
package federation

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no federation provider is wired.
var ErrNotConfigured = errors.New("federated login is not configured")

// ErrInvalidAssertion is returned when the provider token fails verification.
var ErrInvalidAssertion = errors.New("invalid federated assertion")

// Claims is the subset of provider claims the exchange flow needs.
type Claims struct {
	Email       string
	DisplayName string
}

// Verifier checks a provider-issued assertion and extracts its claims.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (Claims, error)
}

var _ Verifier = Disabled{}

// Disabled rejects every assertion. It is wired when no provider is
// configured so the exchange endpoint degrades to a clean error instead of a
// nil dereference.
type Disabled struct{}

func (Disabled) Verify(ctx context.Context, assertion string) (Claims, error) {
	return Claims{}, ErrNotConfigured
}
