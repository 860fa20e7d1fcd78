package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled or locked.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRecoveryUnavailable indicates the recovery flow is not properly configured.
	ErrRecoveryUnavailable = errors.New("recovery service unavailable")
	// ErrRecoveryContactMissing indicates the user has no reachable contact for the channel.
	ErrRecoveryContactMissing = errors.New("no contact method available for recovery")
	// ErrInvalidOrExpiredToken covers unknown, consumed, and expired recovery
	// tokens. Callers cannot distinguish the three cases.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired recovery token")
	// ErrInvalidOrExpiredCode covers unknown, mismatched, and expired recovery
	// codes. Callers cannot distinguish the three cases.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired recovery code")
	// ErrAttemptsExhausted indicates the SMS code attempt budget is spent and
	// the code is locked until a new one is issued.
	ErrAttemptsExhausted = errors.New("recovery code attempts exhausted")
	// ErrCurrentPasswordRequired indicates a password change without the current credential.
	ErrCurrentPasswordRequired = errors.New("current password is required")
	// ErrCurrentPasswordInvalid indicates the supplied current password does not match.
	ErrCurrentPasswordInvalid = errors.New("current password is invalid")
)

// PolicyViolationError reports a rejected password together with the policy
// reasons, so transport layers can show actionable feedback.
type PolicyViolationError struct {
	Reasons []string
}

func (e *PolicyViolationError) Error() string {
	if len(e.Reasons) == 0 {
		return "password rejected by policy"
	}
	return fmt.Sprintf("password rejected by policy: %s", strings.Join(e.Reasons, "; "))
}

// RateLimitExceededError indicates a sliding-window limit was hit for a scope.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

func metadataCopy(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func stringPtr(value string) *string {
	return &value
}

func stringPtrOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return stringPtr(trimmed)
}

func normalizeIdentifierKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
