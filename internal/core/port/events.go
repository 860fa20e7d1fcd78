package port

import (
	"context"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishRecoveryRequested(ctx context.Context, event domain.RecoveryRequestedEvent) error
	PublishCredentialChanged(ctx context.Context, event domain.CredentialChangedEvent) error
	PublishCredentialUpgraded(ctx context.Context, event domain.CredentialUpgradedEvent) error
}
