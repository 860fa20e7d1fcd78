package domain

import "time"

// CredentialFormat identifies how a stored credential value must be interpreted.
// The format is resolved once at read time; callers never probe multiple
// interpretations against the same value.
type CredentialFormat string

const (
	// CredentialFormatHashed is the current PBKDF2 salt-prefixed encoding.
	CredentialFormatHashed CredentialFormat = "pbkdf2"
	// CredentialFormatLegacyPlaintext marks pre-migration rows that still hold
	// the raw password. These are upgraded on the next successful login.
	CredentialFormatLegacyPlaintext CredentialFormat = "plaintext"
)

// StoredCredential pairs a persisted credential value with its declared format.
type StoredCredential struct {
	Value  string
	Format CredentialFormat
}

// IsLegacy reports whether the credential still uses the plaintext format.
func (c StoredCredential) IsLegacy() bool {
	return c.Format == CredentialFormatLegacyPlaintext
}

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusLocked   UserStatus = "locked"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID                 string
	Username           string
	Email              string
	Phone              *string
	Credential         StoredCredential
	Status             UserStatus
	IsActive           bool
	RegisteredAt       time.Time
	LastLogin          *time.Time
	LastPasswordChange time.Time
}
