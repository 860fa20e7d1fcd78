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
	"github.com/marketgrid/credential-service/internal/repository"
)

const credentialChangeReason = "password_change"

// CredentialService enrolls new credentials and changes existing ones for
// authenticated users. Recovery-driven resets live in RecoveryService.
type CredentialService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	policy port.PasswordPolicy
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// EnrollInput carries the data required to register a credential.
type EnrollInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// ChangeInput carries an authenticated password change request.
type ChangeInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	IP              string
	UserAgent       string
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(users port.UserRepository, hasher port.PasswordHasher, policy port.PasswordPolicy, events port.EventPublisher, log *zap.Logger) *CredentialService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		users:  users,
		hasher: hasher,
		policy: policy,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Enroll evaluates the password against policy, hashes it, and creates the
// user row. The stored credential is always in the hashed format; legacy
// plaintext rows only ever predate this service.
func (s *CredentialService) Enroll(ctx context.Context, input EnrollInput) (*domain.User, error) {
	if s.users == nil || s.hasher == nil {
		return nil, fmt.Errorf("credential service not configured")
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	email := strings.TrimSpace(input.Email)
	phone := strings.TrimSpace(input.Phone)
	if email == "" && phone == "" {
		return nil, fmt.Errorf("email or phone is required")
	}

	if err := s.checkPolicy(input.Password, username, email, phone); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		Credential: domain.StoredCredential{
			Value:  hashed,
			Format: domain.CredentialFormatHashed,
		},
		Status:             domain.UserStatusActive,
		IsActive:           true,
		RegisteredAt:       now,
		LastPasswordChange: now,
	}
	if phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("credential enrolled", zap.String("user_id", user.ID))

	sanitized := user
	sanitized.Credential = domain.StoredCredential{}
	return &sanitized, nil
}

// Change replaces the credential of an authenticated user after verifying
// the current password.
func (s *CredentialService) Change(ctx context.Context, input ChangeInput) (*ResetResult, error) {
	if s.users == nil || s.hasher == nil {
		return nil, fmt.Errorf("credential service not configured")
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(input.CurrentPassword) == "" {
		return nil, ErrCurrentPasswordRequired
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !verifyStored(s.hasher, input.CurrentPassword, user.Credential) {
		return nil, ErrCurrentPasswordInvalid
	}

	var phone string
	if user.Phone != nil {
		phone = *user.Phone
	}
	if err := s.checkPolicy(input.NewPassword, user.Username, user.Email, phone); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash new password: %w", err)
	}

	changedAt := s.now().UTC()
	credential := domain.StoredCredential{Value: hashed, Format: domain.CredentialFormatHashed}

	if err := s.users.UpdateCredential(ctx, user.ID, credential, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}

	s.logger.Info("credential changed", zap.String("user_id", user.ID))

	s.publishCredentialChanged(ctx, user.ID, changedAt, input.IP, input.UserAgent)

	return &ResetResult{UserID: user.ID, ChangedAt: changedAt}, nil
}

func (s *CredentialService) checkPolicy(password, username, email, phone string) error {
	if s.policy == nil {
		return nil
	}

	pctx := domain.PasswordContext{Username: username, Email: email}
	if trimmed := strings.TrimSpace(phone); trimmed != "" {
		pctx.Phone = &trimmed
	}

	if result := s.policy.Evaluate(password, pctx); !result.Valid {
		return &PolicyViolationError{Reasons: result.Reasons}
	}

	return nil
}

func (s *CredentialService) publishCredentialChanged(ctx context.Context, userID string, changedAt time.Time, ip, userAgent string) {
	if s.events == nil {
		return
	}

	metadata := make(map[string]any)
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		metadata["ip"] = trimmed
	}
	if trimmed := strings.TrimSpace(userAgent); trimmed != "" {
		metadata["user_agent"] = trimmed
	}

	event := domain.CredentialChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: changedAt,
		ChangedBy: userID,
		Reason:    credentialChangeReason,
		Metadata:  metadataCopy(metadata),
	}

	if err := s.events.PublishCredentialChanged(ctx, event); err != nil {
		s.logger.Warn("publish credential changed failed", zap.String("user_id", userID), zap.Error(err))
	}
}
