// Package session keeps server-side login sessions referenced by the access token.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

type Session struct {
	ID           string    `json:"id"`
	UserID       int       `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Store persists sessions. Get slides the idle timeout forward.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID int) error
	// Sweep drops expired state nobody reads anymore and reports how much.
	Sweep(ctx context.Context) (int, error)
}
