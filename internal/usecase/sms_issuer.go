package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/infra/security"
	"github.com/marketgrid/credential-service/internal/repository"
)

const (
	defaultCodeTTL    = 15 * time.Minute
	defaultCodeLength = 6
)

// SMSIssuer issues and validates short-lived numeric recovery codes. Unlike
// the email token, validation and consumption are a single combined step: SMS
// codes are single-shot, so a matching code is cleared immediately and a
// mismatch burns one of the five attempts.
type SMSIssuer struct {
	codes      port.RecoveryCodeStore
	logger     *zap.Logger
	now        func() time.Time
	ttl        time.Duration
	codeLength int
}

// NewSMSIssuer constructs an SMSIssuer backed by the provided code store.
func NewSMSIssuer(codes port.RecoveryCodeStore, logger *zap.Logger) *SMSIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMSIssuer{
		codes:      codes,
		logger:     logger,
		now:        time.Now,
		ttl:        defaultCodeTTL,
		codeLength: defaultCodeLength,
	}
}

// Issue generates a fresh numeric code for the user, replacing any previous
// code and resetting the attempt counter.
func (i *SMSIssuer) Issue(ctx context.Context, userID string) (*domain.RecoveryCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if i.codes == nil {
		return nil, ErrRecoveryUnavailable
	}

	raw, err := security.GenerateNumericCode(i.codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate recovery code: %w", err)
	}

	now := i.now().UTC()
	code := domain.RecoveryCode{
		UserID:    userID,
		Code:      raw,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}

	if err := i.codes.Put(ctx, code, i.ttl); err != nil {
		return nil, fmt.Errorf("store recovery code: %w", err)
	}

	return &code, nil
}

// ValidateAndConsume checks the supplied code and consumes it on success.
// Every confirmation burns an attempt up front through the store's atomic
// increment, and the exhaustion gate reads the incremented value, so
// concurrent confirmations observing the same stale counter cannot stretch
// the attempt limit. Past the limit the code reports ErrAttemptsExhausted
// without examining the supplied value; a mismatch or an expired code
// reports ErrInvalidOrExpiredCode. Consuming a matching code deletes the
// whole record, so the attempt burned on the winning call is moot.
func (i *SMSIssuer) ValidateAndConsume(ctx context.Context, userID, supplied string) error {
	userID = strings.TrimSpace(userID)
	supplied = strings.TrimSpace(supplied)
	if userID == "" || supplied == "" {
		return ErrInvalidOrExpiredCode
	}
	if i.codes == nil {
		return ErrRecoveryUnavailable
	}

	code, err := i.codes.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("lookup recovery code: %w", err)
	}

	attempts, err := i.codes.IncrementAttempts(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("count recovery code attempt: %w", err)
	}
	if attempts > domain.MaxRecoveryCodeAttempts {
		i.logger.Info("recovery code attempts exhausted", zap.String("user_id", userID))
		return ErrAttemptsExhausted
	}

	now := i.now().UTC()
	matches := subtle.ConstantTimeCompare([]byte(code.Code), []byte(supplied)) == 1

	if !matches || code.IsExpired(now) {
		return ErrInvalidOrExpiredCode
	}

	if err := i.codes.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear recovery code: %w", err)
	}

	return nil
}

// WithClock allows tests to override the clock used by the issuer.
func (i *SMSIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		i.now = clock
	}
}

// WithTTL allows tests to override the default code TTL.
func (i *SMSIssuer) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		i.ttl = ttl
	}
}

// WithCodeLength overrides the number of digits in issued codes.
func (i *SMSIssuer) WithCodeLength(length int) {
	if length > 0 {
		i.codeLength = length
	}
}
