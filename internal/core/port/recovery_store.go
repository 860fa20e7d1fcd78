package port

import (
	"context"
	"time"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

// RecoveryTokenStore manages single-use password recovery token records.
type RecoveryTokenStore interface {
	Create(ctx context.Context, token domain.RecoveryToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RecoveryToken, error)
	// MarkConsumed sets used_at on the token if and only if it is still
	// unused. Returns repository.ErrAlreadyConsumed when another caller won
	// the race, repository.ErrNotFound when the token does not exist.
	MarkConsumed(ctx context.Context, id string, at time.Time) error
}

// RecoveryCodeStore manages short-lived SMS recovery codes keyed by user.
// At most one active code exists per user; issuing a new code replaces any
// previous one.
type RecoveryCodeStore interface {
	Put(ctx context.Context, code domain.RecoveryCode, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*domain.RecoveryCode, error)
	// IncrementAttempts atomically bumps the failed-attempt counter and
	// returns the new value.
	IncrementAttempts(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string) error
}
