package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed refresh token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

const insertTokenSQL = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, token, expires_at, revoked, created_at`

func (s *PostgresStore) Create(ctx context.Context, token Token) (Token, error) {
	row := s.db.QueryRow(ctx, insertTokenSQL,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.Revoked,
		token.CreatedAt,
	)
	inserted, err := scanToken(row)
	if err != nil {
		return Token{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return inserted, nil
}

const getTokenSQL = `SELECT id, user_id, token, expires_at, revoked, created_at
FROM refresh_tokens
WHERE token = $1
LIMIT 1`

func (s *PostgresStore) GetByToken(ctx context.Context, value string) (Token, error) {
	row := s.db.QueryRow(ctx, getTokenSQL, value)
	record, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, fmt.Errorf("get refresh token: %w", err)
	}
	return record, nil
}

// The WHERE revoked = FALSE condition is what makes rotation single-use: only
// one concurrent caller sees a row flip.
const revokeTokenSQL = `UPDATE refresh_tokens
SET revoked = TRUE
WHERE token = $1 AND revoked = FALSE`

func (s *PostgresStore) Revoke(ctx context.Context, value string) (bool, error) {
	tag, err := s.db.Exec(ctx, revokeTokenSQL, value)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens by user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (Token, error) {
	var t Token
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		return Token{}, err
	}
	return t, nil
}
