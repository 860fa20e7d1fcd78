package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishRecoveryRequested logs credentials.recovery.requested events.
// Raw artifacts are masked before logging.
func (p *StubPublisher) PublishRecoveryRequested(_ context.Context, event domain.RecoveryRequestedEvent) error {
	payload := map[string]any{
		"user_id":            event.UserID,
		"request_id":         event.RequestID,
		"requested_at":       event.RequestedAt,
		"channel":            event.Channel,
		"masked_destination": event.MaskedDestination,
		"token":              logger.MaskString(event.Token),
		"code":               logger.MaskString(event.Code),
		"expires_at":         event.ExpiresAt,
		"metadata":           event.Metadata,
	}
	p.logEvent("credentials.recovery.requested", event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishCredentialChanged logs credentials.credential.changed events.
func (p *StubPublisher) PublishCredentialChanged(_ context.Context, event domain.CredentialChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"changed_at": event.ChangedAt,
		"changed_by": event.ChangedBy,
		"reason":     event.Reason,
		"metadata":   event.Metadata,
	}
	p.logEvent("credentials.credential.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishCredentialUpgraded logs credentials.credential.upgraded events.
func (p *StubPublisher) PublishCredentialUpgraded(_ context.Context, event domain.CredentialUpgradedEvent) error {
	payload := map[string]any{
		"user_id":     event.UserID,
		"upgraded_at": event.UpgradedAt,
		"from_format": event.FromFormat,
		"to_format":   event.ToFormat,
		"metadata":    event.Metadata,
	}
	p.logEvent("credentials.credential.upgraded", event.UserID, event.UpgradedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
