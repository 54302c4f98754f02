package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/federation"
	"github.com/DTADMI/gamehub-api/internal/identity"
	"github.com/DTADMI/gamehub-api/internal/password"
	"github.com/DTADMI/gamehub-api/internal/refresh"
	"github.com/DTADMI/gamehub-api/internal/token"
	"github.com/DTADMI/gamehub-api/internal/user"
)

const (
	// RoleUser is granted to every account; RoleAdmin gates the admin surface.
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"

	minPasswordLength = 8
)

// TokenPair is the response body of every flow that mints credentials.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// APIError standardizes client-visible errors across auth flows.
type APIError struct {
	Code        string
	Description string
	Status      int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAPIError(code, desc string, status int) *APIError {
	return &APIError{Code: code, Description: desc, Status: status}
}

// AuthService encapsulates the login, signup, refresh, exchange, and logout
// flows on top of the token and refresh services.
type AuthService struct {
	users     user.Repository
	refresh   *refresh.Service
	tokens    *token.Service
	federated federation.Verifier
	node      *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAuthService wires dependencies.
func NewAuthService(users user.Repository, refreshSvc *refresh.Service, tokens *token.Service, federated federation.Verifier, node *snowflake.Node, logger *zap.Logger) *AuthService {
	if federated == nil {
		federated = federation.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		refresh:   refreshSvc,
		tokens:    tokens,
		federated: federated,
		node:      node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/DTADMI/gamehub-api/internal/service"),
		now:       time.Now,
	}
}

// Login authenticates with email and password. Wrong email and wrong password
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := normalizeEmail(email)
	account, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return nil, newAPIError("unauthorized", "Wrong email or password.", http.StatusUnauthorized)
	}

	valid, err := password.Verify(plaintext, account.PasswordHash)
	if err != nil || !valid {
		span.RecordError(errors.New("invalid password"))
		return nil, newAPIError("unauthorized", "Wrong email or password.", http.StatusUnauthorized)
	}

	pair, err := s.issuePair(ctx, account)
	if err == nil {
		s.audit("auth.login.success", "user_id", account.ID)
	} else {
		span.RecordError(err)
	}
	return pair, err
}

// Signup registers a new account and signs it in.
func (s *AuthService) Signup(ctx context.Context, username, email, plaintext string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	normalized := normalizeEmail(email)
	if !strings.Contains(normalized, "@") {
		return nil, newAPIError("invalid_request", "A valid email is required.", http.StatusBadRequest)
	}
	if len(plaintext) < minPasswordLength {
		return nil, newAPIError("invalid_request",
			fmt.Sprintf("Password must be at least %d characters.", minPasswordLength), http.StatusBadRequest)
	}
	if strings.TrimSpace(username) == "" {
		username, _, _ = strings.Cut(normalized, "@")
	}

	exists, err := s.users.ExistsByEmail(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if exists {
		return nil, newAPIError("conflict", "Email already registered.", http.StatusConflict)
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.users.Create(ctx, user.User{
		ID:           s.node.Generate().Int64(),
		Username:     strings.TrimSpace(username),
		Email:        normalized,
		PasswordHash: hash,
		Roles:        []string{RoleUser},
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create account: %w", err)
	}

	pair, err := s.issuePair(ctx, account)
	if err == nil {
		s.audit("auth.signup.success", "user_id", account.ID)
	} else {
		span.RecordError(err)
	}
	return pair, err
}

// Refresh exchanges a live refresh token for a new pair. The old token is
// retired; presenting it again is a replay and fails with a conflict.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, newAPIError("invalid_request", "Refresh token missing.", http.StatusBadRequest)
	}

	record, err := s.refresh.FindValid(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if record == nil {
		return nil, newAPIError("unauthorized", "Invalid refresh token.", http.StatusUnauthorized)
	}

	account, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, newAPIError("unauthorized", "Invalid refresh token.", http.StatusUnauthorized)
	}

	rotated, err := s.refresh.Rotate(ctx, *record)
	if errors.Is(err, refresh.ErrTokenReuse) {
		s.audit("auth.refresh.reuse", "user_id", record.UserID)
		return nil, newAPIError("conflict", "Refresh token already used.", http.StatusConflict)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := s.tokens.Issue(account.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("auth.refresh.success", "user_id", account.ID)
	return s.pair(access, rotated.Token), nil
}

// ExchangeFederated turns a provider-issued assertion into a first-party
// session, creating the account on first sight.
func (s *AuthService) ExchangeFederated(ctx context.Context, assertion string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ExchangeFederated")
	defer span.End()

	if strings.TrimSpace(assertion) == "" {
		return nil, newAPIError("invalid_request", "Assertion missing.", http.StatusBadRequest)
	}

	claims, err := s.federated.Verify(ctx, assertion)
	if errors.Is(err, federation.ErrNotConfigured) {
		return nil, newAPIError("invalid_request", "Federated login is not configured.", http.StatusBadRequest)
	}
	if err != nil {
		span.RecordError(err)
		return nil, newAPIError("unauthorized", "Invalid federated assertion.", http.StatusUnauthorized)
	}

	normalized := normalizeEmail(claims.Email)
	if normalized == "" {
		return nil, newAPIError("unauthorized", "Invalid federated assertion.", http.StatusUnauthorized)
	}

	account, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, user.ErrNotFound) {
		username := strings.TrimSpace(claims.DisplayName)
		if username == "" {
			username, _, _ = strings.Cut(normalized, "@")
		}
		account, err = s.users.Create(ctx, user.User{
			ID:        s.node.Generate().Int64(),
			Username:  username,
			Email:     normalized,
			Roles:     []string{RoleUser},
			CreatedAt: s.now().UTC(),
		})
		if err == nil {
			s.audit("auth.exchange.provisioned", "user_id", account.ID)
		}
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve federated account: %w", err)
	}

	pair, err := s.issuePair(ctx, account)
	if err == nil {
		s.audit("auth.exchange.success", "user_id", account.ID)
	} else {
		span.RecordError(err)
	}
	return pair, err
}

// Logout revokes every refresh token of the account. Outstanding access
// tokens stay valid until expiry; they are stateless.
func (s *AuthService) Logout(ctx context.Context, userID int64) (int64, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	count, err := s.refresh.RevokeAllForOwner(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.audit("auth.logout", "user_id", userID, "revoked", count)
	return count, nil
}

// Profile loads the account behind a verified identity.
func (s *AuthService) Profile(ctx context.Context, userID int64) (user.User, error) {
	account, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, newAPIError("unauthorized", "Account no longer exists.", http.StatusUnauthorized)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("load profile: %w", err)
	}
	return account, nil
}

// IdentityFromToken verifies a bearer access token and resolves the caller's
// identity. A verified subject whose account row is gone still yields an
// email-only identity; roles require the account.
func (s *AuthService) IdentityFromToken(ctx context.Context, raw string) (identity.Identity, error) {
	subject, err := s.tokens.Verify(raw)
	if err != nil {
		return identity.Identity{}, newAPIError("unauthorized", "Invalid or expired token.", http.StatusUnauthorized)
	}

	account, err := s.users.GetByEmail(ctx, subject)
	if errors.Is(err, user.ErrNotFound) {
		return identity.Identity{Email: subject}, nil
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return identity.Identity{UserID: account.ID, Email: account.Email, Roles: account.Roles}, nil
}

func (s *AuthService) issuePair(ctx context.Context, account user.User) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.issuePair")
	defer span.End()

	access, err := s.tokens.Issue(account.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshed, err := s.refresh.Issue(ctx, account.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return s.pair(access, refreshed.Token), nil
}

func (s *AuthService) pair(access token.AccessToken, refreshToken string) *TokenPair {
	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", s.now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.logger.Info("audit", fields...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
