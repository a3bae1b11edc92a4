// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents an identity that owns time records. Anonymous users have
// no email until they are claimed.
type User struct {
	ID           string    `json:"id"`
	IsAnonymous  bool      `json:"isAnonymous"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session represents an active user session.
type Session struct {
	Token     string
	UserID    string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
// Lookups return nil, nil when no user matches.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// PromoteUser turns an anonymous user into a permanent one. It returns
	// ErrEmailTaken when another user already owns email.
	PromoteUser(ctx context.Context, id, email, passwordHash string) (*User, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}
