package domain

import "time"

// RecoveryRequestedEvent represents the payload for credentials.recovery.requested
// messages consumed by the notification service to deliver the email or SMS.
type RecoveryRequestedEvent struct {
	EventID           string
	UserID            string
	RequestID         string
	RequestedAt       time.Time
	Channel           string
	Destination       string
	MaskedDestination string
	Token             string
	Code              string
	IPAddress         *string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// CredentialChangedEvent represents the payload for credentials.credential.changed
// messages emitted after a password change or reset commits.
type CredentialChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	ChangedBy string
	Reason    string
	Metadata  map[string]any
}

// CredentialUpgradedEvent represents the payload for credentials.credential.upgraded
// messages emitted when a legacy plaintext credential is rehashed on login.
type CredentialUpgradedEvent struct {
	EventID    string
	UserID     string
	UpgradedAt time.Time
	FromFormat string
	ToFormat   string
	Metadata   map[string]any
}
