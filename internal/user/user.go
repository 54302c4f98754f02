package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// User is a portfolio account. Roles are plain strings ("ROLE_USER",
// "ROLE_ADMIN") carried into access-token claims and flag segmentation.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// HasRole reports whether the user carries the role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Repository is the persistence surface for accounts.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
