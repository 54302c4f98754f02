package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Verification failures are terminal: the caller treats the bearer as absent.
// The distinction exists for logging and tests only and must never leak into
// response bodies.
var (
	ErrInvalidSubject = errors.New("token: subject must not be empty")
	ErrMalformed      = errors.New("token: malformed")
	ErrBadSignature   = errors.New("token: bad signature")
	ErrExpired        = errors.New("token: expired")
	ErrUnsupported    = errors.New("token: unsupported")
)

// AccessToken is a self-contained signed credential; it is never stored.
type AccessToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies HS256-signed access tokens. Stateless and safe
// for concurrent use once constructed.
type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewService constructs a token service around derived key material.
func NewService(key []byte, ttl time.Duration) (*Service, error) {
	if len(key) < hmacKeyLen {
		return nil, fmt.Errorf("token: key must be at least %d bytes, got %d", hmacKeyLen, len(key))
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured access token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token carrying the subject claim.
func (s *Service) Issue(subject string) (AccessToken, error) {
	if strings.TrimSpace(subject) == "" {
		return AccessToken{}, ErrInvalidSubject
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: s.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return AccessToken{}, fmt.Errorf("new signer: %w", err)
	}

	now := s.now().UTC()
	expiry := now.Add(s.ttl)
	claims := gojwt.Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(expiry),
	}

	raw, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return AccessToken{}, fmt.Errorf("serialize token: %w", err)
	}

	return AccessToken{Token: raw, IssuedAt: now, ExpiresAt: expiry}, nil
}

// Verify checks structure, signature, and expiry and returns the subject.
func (s *Service) Verify(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrMalformed
	}

	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		if strings.Contains(err.Error(), "algorithm") {
			return "", ErrUnsupported
		}
		return "", ErrMalformed
	}

	var claims gojwt.Claims
	if err := parsed.Claims(s.key, &claims); err != nil {
		return "", ErrBadSignature
	}

	if claims.Subject == "" {
		return "", ErrUnsupported
	}

	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: s.now()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return "", ErrExpired
		}
		return "", ErrUnsupported
	}

	return claims.Subject, nil
}
