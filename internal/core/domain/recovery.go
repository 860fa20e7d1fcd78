package domain

import "time"

// RecoveryPurpose scopes a recovery artifact to the operation it authorizes.
type RecoveryPurpose string

const (
	// RecoveryPurposePasswordReset authorizes replacing the account credential.
	RecoveryPurposePasswordReset RecoveryPurpose = "password_reset"
)

// MaxRecoveryCodeAttempts is the number of failed SMS code validations allowed
// before the code becomes permanently unusable and must be reissued.
const MaxRecoveryCodeAttempts = 5

// RecoveryToken represents a single-use email recovery token. Only the SHA-256
// hash of the raw token is persisted.
type RecoveryToken struct {
	ID        string
	UserID    string
	TokenHash string
	Purpose   RecoveryPurpose
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	Metadata  map[string]any
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RecoveryToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsUsable reports whether the token can still authorize a reset at the given
// instant. Usability checks are side-effect free; consumption is a separate,
// atomic store operation.
func (t RecoveryToken) IsUsable(at time.Time) bool {
	return t.UsedAt == nil && !t.IsExpired(at)
}

// Consume marks the token as used.
// Returns true when the token transitions from unused to used.
func (t *RecoveryToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	return true
}

// RecoveryCode represents a short-lived numeric SMS recovery code with an
// attempt counter. Attempts only ever increase until the code is cleared.
type RecoveryCode struct {
	UserID    string
	Code      string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the code has elapsed its validity window.
func (c RecoveryCode) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
