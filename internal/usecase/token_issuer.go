package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/infra/security"
	"github.com/marketgrid/credential-service/internal/repository"
)

const (
	defaultTokenTTL   = time.Hour
	recoveryTokenSize = 32
)

// TokenIssuer issues and validates single-use email recovery tokens. The raw
// token leaves the process exactly once, inside the issue result; only its
// SHA-256 hash is persisted.
type TokenIssuer struct {
	tokens port.RecoveryTokenStore
	logger *zap.Logger
	now    func() time.Time
	ttl    time.Duration
}

// IssuedToken pairs the raw token handed to delivery with the persisted record.
type IssuedToken struct {
	Raw   string
	Token domain.RecoveryToken
}

// NewTokenIssuer constructs a TokenIssuer backed by the provided store.
func NewTokenIssuer(tokens port.RecoveryTokenStore, logger *zap.Logger) *TokenIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenIssuer{
		tokens: tokens,
		logger: logger,
		now:    time.Now,
		ttl:    defaultTokenTTL,
	}
}

// Issue generates a fresh recovery token for the user and persists its hash.
func (i *TokenIssuer) Issue(ctx context.Context, userID string, ip, userAgent *string, metadata map[string]any) (*IssuedToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if i.tokens == nil {
		return nil, ErrRecoveryUnavailable
	}

	raw, err := security.GenerateSecureToken(recoveryTokenSize)
	if err != nil {
		return nil, fmt.Errorf("generate recovery token: %w", err)
	}

	now := i.now().UTC()
	token := domain.RecoveryToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: security.HashToken(raw),
		Purpose:   domain.RecoveryPurposePasswordReset,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
		Metadata:  metadataCopy(metadata),
	}

	if err := i.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store recovery token: %w", err)
	}

	return &IssuedToken{Raw: raw, Token: token}, nil
}

// Validate resolves a raw token to its record if it is still usable. It never
// mutates state: two validations racing on the same token both observe it as
// valid, and only the later Consume step is exclusive.
func (i *TokenIssuer) Validate(ctx context.Context, raw string) (*domain.RecoveryToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	if i.tokens == nil {
		return nil, ErrRecoveryUnavailable
	}

	token, err := i.tokens.GetByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup recovery token: %w", err)
	}

	if token.Purpose != domain.RecoveryPurposePasswordReset {
		return nil, ErrInvalidOrExpiredToken
	}

	if !token.IsUsable(i.now().UTC()) {
		return nil, ErrInvalidOrExpiredToken
	}

	return token, nil
}

// Consume marks the token used. Exactly one of any number of concurrent
// consumers succeeds; the rest observe ErrInvalidOrExpiredToken.
func (i *TokenIssuer) Consume(ctx context.Context, tokenID string) error {
	if i.tokens == nil {
		return ErrRecoveryUnavailable
	}

	if err := i.tokens.MarkConsumed(ctx, tokenID, i.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) || errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("consume recovery token: %w", err)
	}

	return nil
}

// WithClock allows tests to override the clock used by the issuer.
func (i *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		i.now = clock
	}
}

// WithTTL allows tests to override the default token TTL.
func (i *TokenIssuer) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		i.ttl = ttl
	}
}
