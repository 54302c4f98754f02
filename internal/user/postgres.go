package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository implements Repository on a pgx pool. Roles live in a
// TEXT[] column, which pgx scans into []string directly.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a Postgres-backed account repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const getUserByEmailSQL = `SELECT id, username, email, password_hash, roles, created_at
FROM users
WHERE email = $1
LIMIT 1`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, getUserByEmailSQL, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

const getUserByIDSQL = `SELECT id, username, email, password_hash, roles, created_at
FROM users
WHERE id = $1
LIMIT 1`

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, getUserByIDSQL, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (id, username, email, password_hash, roles, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, username, email, password_hash, roles, created_at`

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Roles,
		u.CreatedAt,
	)
	inserted, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return inserted, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}
