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
	"github.com/marketgrid/credential-service/internal/infra/config"
	"github.com/marketgrid/credential-service/internal/infra/logger"
	"github.com/marketgrid/credential-service/internal/repository"
)

const (
	// RecoveryChannelEmail delivers a magic-link token to the account email.
	RecoveryChannelEmail = "email"
	// RecoveryChannelSMS delivers a numeric code to the account phone.
	RecoveryChannelSMS = "sms"

	recoveryRateLimitScope = "recovery_request"
	recoveryResetReason    = "password_reset"
)

// RecoveryService orchestrates the password recovery lifecycle: request,
// artifact issuance and delivery, and the terminal reset.
type RecoveryService struct {
	cfg         *config.AppConfig
	users       port.UserRepository
	tokenIssuer *TokenIssuer
	smsIssuer   *SMSIssuer
	hasher      port.PasswordHasher
	policy      port.PasswordPolicy
	rateLimits  port.RateLimitStore
	delivery    port.DeliveryService
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// RecoveryRequestInput carries the caller context for a recovery request.
type RecoveryRequestInput struct {
	Identifier string
	Channel    string
	IP         string
	UserAgent  string
}

// RecoveryRequestResult is the caller-visible outcome of a recovery request.
// The shape is identical whether or not the identity exists, so responses
// cannot be used to probe for accounts.
type RecoveryRequestResult struct {
	RequestID   string
	RequestedAt time.Time
}

// ResetResult reports a committed credential replacement.
type ResetResult struct {
	UserID    string
	ChangedAt time.Time
}

// NewRecoveryService constructs a RecoveryService.
func NewRecoveryService(
	cfg *config.AppConfig,
	users port.UserRepository,
	tokenIssuer *TokenIssuer,
	smsIssuer *SMSIssuer,
	hasher port.PasswordHasher,
	policy port.PasswordPolicy,
	rateLimits port.RateLimitStore,
	delivery port.DeliveryService,
	events port.EventPublisher,
	log *zap.Logger,
) *RecoveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecoveryService{
		cfg:         cfg,
		users:       users,
		tokenIssuer: tokenIssuer,
		smsIssuer:   smsIssuer,
		hasher:      hasher,
		policy:      policy,
		rateLimits:  rateLimits,
		delivery:    delivery,
		events:      events,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestRecovery starts a recovery attempt for the identifier over the
// requested channel. Unknown identities, missing contacts, and delivery
// failures all produce the same success result as the happy path; only rate
// limiting and infrastructure faults surface as errors.
func (s *RecoveryService) RequestRecovery(ctx context.Context, input RecoveryRequestInput) (*RecoveryRequestResult, error) {
	if s.users == nil || s.tokenIssuer == nil || s.smsIssuer == nil {
		return nil, ErrRecoveryUnavailable
	}

	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	channel := strings.ToLower(strings.TrimSpace(input.Channel))
	switch channel {
	case RecoveryChannelEmail, RecoveryChannelSMS:
	case "":
		channel = RecoveryChannelEmail
	default:
		return nil, fmt.Errorf("unsupported recovery channel %q", channel)
	}

	now := s.now().UTC()
	if err := s.enforceRateLimit(ctx, identifier, now); err != nil {
		return nil, err
	}

	result := &RecoveryRequestResult{
		RequestID:   uuid.NewString(),
		RequestedAt: now,
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deliberate: the caller sees the same result as for a real
			// account, so the endpoint cannot be used for enumeration.
			s.logger.Info("recovery requested for unknown identifier",
				zap.String("identifier", logger.MaskString(identifier)),
				zap.String("request_id", result.RequestID))
			return result, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.issueAndDeliver(ctx, user, channel, result.RequestID, input.IP, input.UserAgent); err != nil {
		if errors.Is(err, ErrRecoveryContactMissing) {
			s.logger.Warn("recovery requested without usable contact",
				zap.String("user_id", user.ID),
				zap.String("channel", channel),
				zap.String("request_id", result.RequestID))
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

// ResetWithToken finalizes a recovery using a raw email token. The token is
// consumed before the credential write: the conditional mark is the atomicity
// point, so of two racing resets exactly one proceeds to commit.
func (s *RecoveryService) ResetWithToken(ctx context.Context, rawToken, newPassword string) (*ResetResult, error) {
	if s.users == nil || s.tokenIssuer == nil {
		return nil, ErrRecoveryUnavailable
	}

	token, err := s.tokenIssuer.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := s.prepareCredential(newPassword, user)
	if err != nil {
		return nil, err
	}

	if err := s.tokenIssuer.Consume(ctx, token.ID); err != nil {
		return nil, err
	}

	return s.commitCredential(ctx, user, hashed, RecoveryChannelEmail, token.Metadata)
}

// ResetWithSMS finalizes a recovery using the numeric code delivered to the
// account phone. Code validation and consumption are a single step, so the
// policy check runs first: a weak replacement password must not burn the code.
func (s *RecoveryService) ResetWithSMS(ctx context.Context, identifier, code, newPassword string) (*ResetResult, error) {
	if s.users == nil || s.smsIssuer == nil {
		return nil, ErrRecoveryUnavailable
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidOrExpiredCode
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := s.prepareCredential(newPassword, user)
	if err != nil {
		return nil, err
	}

	if err := s.smsIssuer.ValidateAndConsume(ctx, user.ID, code); err != nil {
		return nil, err
	}

	return s.commitCredential(ctx, user, hashed, RecoveryChannelSMS, nil)
}

func (s *RecoveryService) enforceRateLimit(ctx context.Context, identifier string, now time.Time) error {
	if s.rateLimits == nil || s.cfg == nil {
		return nil
	}

	limit := s.cfg.RateLimit.RecoveryMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := s.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	identifierKey := normalizeIdentifierKey(identifier)
	if identifierKey == "" {
		return nil
	}

	storageKey := fmt.Sprintf("%s:%s", recoveryRateLimitScope, identifierKey)

	if err := s.rateLimits.TrimWindow(ctx, storageKey, window, now); err != nil {
		s.logger.Warn("recovery rate limit trim failed", zap.String("scope", recoveryRateLimitScope), zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, storageKey, window, now)
	if err != nil {
		s.logger.Warn("recovery rate limit count failed", zap.String("scope", recoveryRateLimitScope), zap.Error(err))
		return nil
	}

	if count >= limit {
		retryAfter := time.Duration(0)
		if oldest, ok, err := s.rateLimits.OldestAttempt(ctx, storageKey, window, now); err == nil && ok {
			reset := oldest.Add(window)
			if reset.After(now) {
				retryAfter = reset.Sub(now)
			}
		} else if err != nil {
			s.logger.Warn("recovery rate limit oldest lookup failed", zap.Error(err))
		}
		return &RateLimitExceededError{Scope: recoveryRateLimitScope, RetryAfter: retryAfter}
	}

	if err := s.rateLimits.RecordAttempt(ctx, storageKey, now); err != nil {
		s.logger.Warn("recovery rate limit record failed", zap.Error(err))
	}

	return nil
}

func (s *RecoveryService) issueAndDeliver(ctx context.Context, user *domain.User, channel, requestID, ip, userAgent string) error {
	event := domain.RecoveryRequestedEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		RequestID:   requestID,
		RequestedAt: s.now().UTC(),
		Channel:     channel,
		IPAddress:   stringPtrOrNil(ip),
		Metadata:    map[string]any{"request_id": requestID},
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		event.Metadata["user_agent"] = ua
	}

	switch channel {
	case RecoveryChannelEmail:
		email := strings.TrimSpace(user.Email)
		if email == "" {
			return ErrRecoveryContactMissing
		}

		issued, err := s.tokenIssuer.Issue(ctx, user.ID, stringPtrOrNil(ip), stringPtrOrNil(userAgent), event.Metadata)
		if err != nil {
			return err
		}

		event.Destination = email
		event.MaskedDestination = logger.MaskEmail(email)
		event.ExpiresAt = issued.Token.ExpiresAt

		if s.delivery != nil {
			if err := s.delivery.SendRecoveryEmail(ctx, email, issued.Raw, event); err != nil {
				s.logger.Warn("recovery email dispatch failed",
					zap.String("user_id", user.ID),
					zap.String("request_id", requestID),
					zap.Error(err))
			}
		}

	case RecoveryChannelSMS:
		var phone string
		if user.Phone != nil {
			phone = strings.TrimSpace(*user.Phone)
		}
		if phone == "" {
			return ErrRecoveryContactMissing
		}

		code, err := s.smsIssuer.Issue(ctx, user.ID)
		if err != nil {
			return err
		}

		event.Destination = phone
		event.MaskedDestination = logger.MaskPhone(phone)
		event.ExpiresAt = code.ExpiresAt

		if s.delivery != nil {
			if err := s.delivery.SendRecoverySMS(ctx, phone, code.Code, event); err != nil {
				s.logger.Warn("recovery sms dispatch failed",
					zap.String("user_id", user.ID),
					zap.String("request_id", requestID),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("recovery artifact issued",
		zap.String("user_id", user.ID),
		zap.String("channel", channel),
		zap.String("request_id", requestID),
		zap.String("destination", event.MaskedDestination))

	return nil
}

// prepareCredential runs policy and hashing over the replacement password.
// The password is hashed exactly as supplied: trimming or normalizing it here
// would commit a credential for a different string than the user typed and
// break verification at login.
func (s *RecoveryService) prepareCredential(newPassword string, user *domain.User) (string, error) {
	if newPassword == "" {
		return "", &PolicyViolationError{Reasons: []string{"too short"}}
	}
	if s.hasher == nil {
		return "", ErrRecoveryUnavailable
	}

	if s.policy != nil {
		pctx := domain.PasswordContext{
			Username: user.Username,
			Email:    user.Email,
			Phone:    user.Phone,
		}
		if result := s.policy.Evaluate(newPassword, pctx); !result.Valid {
			return "", &PolicyViolationError{Reasons: result.Reasons}
		}
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash new password: %w", err)
	}

	return hashed, nil
}

func (s *RecoveryService) commitCredential(ctx context.Context, user *domain.User, hashed, channel string, metadata map[string]any) (*ResetResult, error) {
	changedAt := s.now().UTC()
	credential := domain.StoredCredential{Value: hashed, Format: domain.CredentialFormatHashed}

	if err := s.users.UpdateCredential(ctx, user.ID, credential, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}

	s.logger.Info("credential reset committed",
		zap.String("user_id", user.ID),
		zap.String("channel", channel))

	s.publishCredentialChanged(ctx, user.ID, changedAt, channel, metadata)

	return &ResetResult{UserID: user.ID, ChangedAt: changedAt}, nil
}

func (s *RecoveryService) publishCredentialChanged(ctx context.Context, userID string, changedAt time.Time, channel string, metadata map[string]any) {
	if s.events == nil {
		return
	}

	meta := metadataCopy(metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["channel"] = channel

	event := domain.CredentialChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: changedAt,
		ChangedBy: userID,
		Reason:    recoveryResetReason,
		Metadata:  meta,
	}

	if err := s.events.PublishCredentialChanged(ctx, event); err != nil {
		s.logger.Warn("publish credential changed failed", zap.String("user_id", userID), zap.Error(err))
	}
}
