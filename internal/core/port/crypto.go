package port

import "github.com/marketgrid/credential-service/internal/core/domain"

// PasswordHasher derives and verifies salted password credentials.
type PasswordHasher interface {
	// Hash derives a fresh salted credential for the password.
	Hash(password string) (string, error)
	// Verify compares a password against a stored credential in constant time.
	// Malformed or corrupt credentials report false; Verify never fails with
	// an error so callers cannot distinguish computation faults from mismatches.
	Verify(password, stored string) bool
	// VerifyPlaintext compares a password against a legacy plaintext
	// credential in constant time, for rows still awaiting the hash migration.
	VerifyPlaintext(password, stored string) bool
}

// PasswordPolicy evaluates password strength requirements.
type PasswordPolicy interface {
	Evaluate(password string, ctx domain.PasswordContext) domain.PasswordPolicyResult
}
