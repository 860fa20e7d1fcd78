package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishRecoveryRequested publishes credentials.recovery.requested events.
// The raw token/code travels only on this internal topic so the notification
// service can deliver it; API responses never carry it.
func (p *EventPublisher) PublishRecoveryRequested(ctx context.Context, event domain.RecoveryRequestedEvent) error {
	payload := struct {
		UserID            string         `json:"user_id"`
		RequestID         string         `json:"request_id"`
		RequestedAt       time.Time      `json:"requested_at"`
		Channel           string         `json:"channel"`
		Destination       string         `json:"destination,omitempty"`
		MaskedDestination string         `json:"masked_destination,omitempty"`
		Token             string         `json:"token,omitempty"`
		Code              string         `json:"code,omitempty"`
		IPAddress         *string        `json:"ip_address,omitempty"`
		ExpiresAt         time.Time      `json:"expires_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		UserID:            event.UserID,
		RequestID:         event.RequestID,
		RequestedAt:       event.RequestedAt.UTC(),
		Channel:           event.Channel,
		Destination:       event.Destination,
		MaskedDestination: event.MaskedDestination,
		Token:             event.Token,
		Code:              event.Code,
		IPAddress:         event.IPAddress,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	timestamp := event.RequestedAt
	if timestamp.IsZero() {
		timestamp = event.ExpiresAt
	}

	return p.publish(ctx, event.EventID, "credentials.recovery.requested", event.UserID, timestamp, payload)
}

// PublishCredentialChanged publishes credentials.credential.changed events.
func (p *EventPublisher) PublishCredentialChanged(ctx context.Context, event domain.CredentialChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		ChangedAt time.Time      `json:"changed_at"`
		ChangedBy string         `json:"changed_by"`
		Reason    string         `json:"reason"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		ChangedBy: event.ChangedBy,
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "credentials.credential.changed", event.UserID, event.ChangedAt, payload)
}

// PublishCredentialUpgraded publishes credentials.credential.upgraded events.
func (p *EventPublisher) PublishCredentialUpgraded(ctx context.Context, event domain.CredentialUpgradedEvent) error {
	payload := struct {
		UserID     string         `json:"user_id"`
		UpgradedAt time.Time      `json:"upgraded_at"`
		FromFormat string         `json:"from_format"`
		ToFormat   string         `json:"to_format"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		UserID:     event.UserID,
		UpgradedAt: event.UpgradedAt.UTC(),
		FromFormat: event.FromFormat,
		ToFormat:   event.ToFormat,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "credentials.credential.upgraded", event.UserID, event.UpgradedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
