package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
)

// DeliveryDispatcher implements port.DeliveryService by handing recovery
// artifacts to the notification pipeline as recovery-requested events.
// Publish failures are logged and swallowed: the caller-visible outcome of a
// recovery request must never reveal whether delivery worked.
type DeliveryDispatcher struct {
	events port.EventPublisher
	logger *zap.Logger
}

// NewDeliveryDispatcher constructs a dispatcher over the provided publisher.
func NewDeliveryDispatcher(events port.EventPublisher, logger *zap.Logger) *DeliveryDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryDispatcher{events: events, logger: logger}
}

// SendRecoveryEmail enqueues an email recovery notification.
func (d *DeliveryDispatcher) SendRecoveryEmail(ctx context.Context, address string, rawToken string, event domain.RecoveryRequestedEvent) error {
	event.Channel = "email"
	event.Destination = address
	event.Token = rawToken

	if err := d.events.PublishRecoveryRequested(ctx, event); err != nil {
		d.logger.Warn("recovery email dispatch failed",
			zap.String("user_id", event.UserID),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
	}
	return nil
}

// SendRecoverySMS enqueues an SMS recovery notification.
func (d *DeliveryDispatcher) SendRecoverySMS(ctx context.Context, phone string, code string, event domain.RecoveryRequestedEvent) error {
	event.Channel = "sms"
	event.Destination = phone
	event.Code = code

	if err := d.events.PublishRecoveryRequested(ctx, event); err != nil {
		d.logger.Warn("recovery sms dispatch failed",
			zap.String("user_id", event.UserID),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
	}
	return nil
}

var _ port.DeliveryService = (*DeliveryDispatcher)(nil)
