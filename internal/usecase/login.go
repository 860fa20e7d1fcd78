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

// LoginService verifies credentials at login. It owns the one place where a
// legacy plaintext credential is still accepted, and upgrades such rows to
// the hashed format as an explicit, logged step on a successful login.
type LoginService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewLoginService constructs a LoginService.
func NewLoginService(users port.UserRepository, hasher port.PasswordHasher, events port.EventPublisher, log *zap.Logger) *LoginService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginService{
		users:  users,
		hasher: hasher,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *LoginService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Authenticate resolves the identifier and verifies the password against the
// stored credential. The caller receives the verified identity only; session
// or claim issuance happens downstream.
func (s *LoginService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	if s.users == nil || s.hasher == nil {
		return nil, fmt.Errorf("login service not configured")
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive || user.Status == domain.UserStatusDisabled || user.Status == domain.UserStatusLocked {
		return nil, ErrInactiveAccount
	}

	if !verifyStored(s.hasher, password, user.Credential) {
		return nil, ErrInvalidCredentials
	}

	if user.Credential.IsLegacy() {
		s.upgradeLegacyCredential(ctx, user, password)
	}

	sanitized := *user
	sanitized.Credential = domain.StoredCredential{}
	return &sanitized, nil
}

// upgradeLegacyCredential rehashes a plaintext credential after the password
// proved correct. The repository update is conditional on the row still being
// legacy; a lost race means another login already upgraded it, which is fine.
func (s *LoginService) upgradeLegacyCredential(ctx context.Context, user *domain.User, password string) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("legacy credential rehash failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return
	}

	upgradedAt := s.now().UTC()
	if err := s.users.UpgradeLegacyCredential(ctx, user.ID, hashed, upgradedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("legacy credential already upgraded",
				zap.String("user_id", user.ID))
			return
		}
		s.logger.Error("legacy credential upgrade failed",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return
	}

	s.logger.Info("legacy credential upgraded on login",
		zap.String("user_id", user.ID),
		zap.String("from_format", string(domain.CredentialFormatLegacyPlaintext)),
		zap.String("to_format", string(domain.CredentialFormatHashed)))

	if s.events != nil {
		event := domain.CredentialUpgradedEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			UpgradedAt: upgradedAt,
			FromFormat: string(domain.CredentialFormatLegacyPlaintext),
			ToFormat:   string(domain.CredentialFormatHashed),
		}
		if err := s.events.PublishCredentialUpgraded(ctx, event); err != nil {
			s.logger.Warn("publish credential upgraded failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}
}

// verifyStored dispatches on the declared credential format. The format tag
// is resolved exactly once; a value is never probed against multiple
// interpretations in sequence.
func verifyStored(hasher port.PasswordHasher, password string, cred domain.StoredCredential) bool {
	switch cred.Format {
	case domain.CredentialFormatHashed:
		return hasher.Verify(password, cred.Value)
	case domain.CredentialFormatLegacyPlaintext:
		return hasher.VerifyPlaintext(password, cred.Value)
	default:
		return false
	}
}
