package port

import (
	"context"
	"time"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for users and their credentials.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	// UpdateCredential replaces the stored credential unconditionally.
	UpdateCredential(ctx context.Context, id string, credential domain.StoredCredential, changedAt time.Time) error
	// UpgradeLegacyCredential rewrites a plaintext credential with its hashed
	// form. The update is conditional on the row still being in the legacy
	// format, so concurrent upgrades commit at most once.
	UpgradeLegacyCredential(ctx context.Context, id string, hashed string, changedAt time.Time) error
}
