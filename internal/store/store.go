package store

import (
	"context"
	"time"
)

// User is a registered account in the site database. The chat server only
// ever reads it while resolving auth keys.
type User struct {
	ID        int64
	Login     string
	Admin     bool
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// GetUserByID retrieves a user by ID, returning (nil, nil) when no
	// such user exists.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// CreateUser inserts a new user record. Used by tooling and tests.
	CreateUser(ctx context.Context, login string, admin bool) (*User, error)

	// Close closes the underlying database connection.
	Close() error
}
