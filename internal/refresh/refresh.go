package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	// ErrTokenReuse signals that a rotate lost the race: the old token was
	// already rotated or revoked by a concurrent caller. Reuse of a dead
	// token is a replay signal; escalation to family-wide revocation is
	// left to the auth boundary.
	ErrTokenReuse = errors.New("refresh: token already rotated or revoked")

	errEmptyToken = errors.New("refresh: token value must not be empty")
)

// Token is a persisted opaque refresh credential. A token is valid iff it is
// not revoked and not past its expiry; rotated, revoked, and expired are all
// terminal for that specific value.
type Token struct {
	ID        int64
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Valid reports whether the token may still be exchanged.
func (t Token) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Service issues, validates, and rotates refresh tokens on top of a Store.
type Service struct {
	store      Store
	ttl        time.Duration
	tokenBytes int
	node       *snowflake.Node
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires dependencies. tokenBytes below 16 is raised to 16 to keep
// at least 128 bits of entropy per token.
func NewService(store Store, node *snowflake.Node, ttl time.Duration, tokenBytes int, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if tokenBytes < 16 {
		tokenBytes = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		ttl:        ttl,
		tokenBytes: tokenBytes,
		node:       node,
		logger:     logger,
		now:        time.Now,
	}
}

// Issue persists and returns a fresh token for the owner. Other live tokens
// of the same owner are untouched; concurrent sessions are allowed.
func (s *Service) Issue(ctx context.Context, userID int64) (Token, error) {
	value, err := randomToken(s.tokenBytes)
	if err != nil {
		return Token{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	record := Token{
		ID:        s.node.Generate().Int64(),
		Token:     value,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	created, err := s.store.Create(ctx, record)
	if err != nil {
		return Token{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return created, nil
}

// FindValid looks a token up by value and returns it only while valid. Not
// found, revoked, and expired all come back as nil so callers cannot probe
// which check failed.
func (s *Service) FindValid(ctx context.Context, value string) (*Token, error) {
	if value == "" {
		return nil, errEmptyToken
	}

	record, err := s.store.GetByToken(ctx, value)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !record.Valid(s.now()) {
		return nil, nil
	}
	return &record, nil
}

// Rotate revokes old and issues a successor for the same owner. The revoke is
// a compare-and-set on the store's revoked flag, so of two concurrent rotates
// on the same token exactly one succeeds; the loser gets ErrTokenReuse.
func (s *Service) Rotate(ctx context.Context, old Token) (Token, error) {
	won, err := s.store.Revoke(ctx, old.Token)
	if err != nil {
		return Token{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !won {
		s.logger.Warn("refresh token reuse detected",
			zap.Int64("user_id", old.UserID),
		)
		return Token{}, ErrTokenReuse
	}

	return s.Issue(ctx, old.UserID)
}

// RevokeAllForOwner bulk-invalidates every token of the owner (logout-all).
func (s *Service) RevokeAllForOwner(ctx context.Context, userID int64) (int64, error) {
	count, err := s.store.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens for owner: %w", err)
	}
	return count, nil
}

// DeleteExpiredBefore removes tokens whose expiry is before cutoff.
func (s *Service) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	count, err := s.store.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	return count, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
