package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups when no row matches.
var ErrNotFound = errors.New("refresh: token not found")

// Store persists refresh tokens. Implementations must serialize concurrent
// writes to the same token row; Revoke in particular must be atomic so that
// only one caller observes the unrevoked-to-revoked transition.
type Store interface {
	Create(ctx context.Context, token Token) (Token, error)
	GetByToken(ctx context.Context, value string) (Token, error)
	// Revoke flips revoked to true iff it was false. The bool reports
	// whether this call performed the transition.
	Revoke(ctx context.Context, value string) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
