package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/repository"
)

func TestLoginService_AuthenticateSuccess(t *testing.T) {
	user := domain.User{
		ID:       "user-1",
		Username: "alice",
		Credential: domain.StoredCredential{
			Value:  "hashed:correct horse",
			Format: domain.CredentialFormatHashed,
		},
		IsActive: true,
		Status:   domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}
	events := &eventPublisherMock{}

	svc := NewLoginService(users, &fakeHasher{}, events, zaptest.NewLogger(t))

	got, err := svc.Authenticate(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got.ID != "user-1" {
		t.Fatalf("expected user-1, got %s", got.ID)
	}
	if got.Credential.Value != "" {
		t.Fatalf("expected credential stripped from result")
	}
	if users.upgradedID != "" {
		t.Fatalf("hashed credential must not trigger upgrade")
	}
}

func TestLoginService_AuthenticateWrongPassword(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "hashed:right", Format: domain.CredentialFormatHashed},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}

	svc := NewLoginService(users, &fakeHasher{}, nil, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginService_AuthenticateUnknownIdentifier(t *testing.T) {
	users := &userRepoMock{byIdentifier: map[string]domain.User{}}
	svc := NewLoginService(users, &fakeHasher{}, nil, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "ghost", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginService_AuthenticateInactiveAccount(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "hashed:pw", Format: domain.CredentialFormatHashed},
		IsActive:   false,
		Status:     domain.UserStatusDisabled,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}
	svc := NewLoginService(users, &fakeHasher{}, nil, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "alice", "pw"); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestLoginService_LegacyCredentialUpgradedOnLogin(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "plain-secret", Format: domain.CredentialFormatLegacyPlaintext},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}
	events := &eventPublisherMock{}

	svc := NewLoginService(users, &fakeHasher{}, events, zaptest.NewLogger(t))

	got, err := svc.Authenticate(context.Background(), "alice", "plain-secret")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got.ID != "user-1" {
		t.Fatalf("expected user-1, got %s", got.ID)
	}

	if users.upgradedID != "user-1" {
		t.Fatalf("expected legacy credential upgraded")
	}
	if users.upgradedHash != "hashed:plain-secret" {
		t.Fatalf("expected rehash of the verified password, got %q", users.upgradedHash)
	}
	if len(events.upgraded) != 1 {
		t.Fatalf("expected one upgrade event, got %d", len(events.upgraded))
	}
	if events.upgraded[0].FromFormat != string(domain.CredentialFormatLegacyPlaintext) {
		t.Fatalf("unexpected from format %q", events.upgraded[0].FromFormat)
	}
}

func TestLoginService_LegacyCredentialWrongPasswordNoUpgrade(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "plain-secret", Format: domain.CredentialFormatLegacyPlaintext},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}

	svc := NewLoginService(users, &fakeHasher{}, nil, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "alice", "guess"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if users.upgradedID != "" {
		t.Fatalf("failed login must not upgrade the credential")
	}
}

func TestLoginService_LegacyUpgradeLostRaceStillSucceeds(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "plain-secret", Format: domain.CredentialFormatLegacyPlaintext},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}
	users.upgradeErr = repository.ErrNotFound
	events := &eventPublisherMock{}

	svc := NewLoginService(users, &fakeHasher{}, events, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "alice", "plain-secret"); err != nil {
		t.Fatalf("login must succeed even if another login upgraded first, got %v", err)
	}
	if len(events.upgraded) != 0 {
		t.Fatalf("losing upgrade must not publish an event")
	}
}

func TestLoginService_UnknownFormatRejected(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "something", Format: domain.CredentialFormat("bcrypt")},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byIdentifier: map[string]domain.User{"alice": user}}

	svc := NewLoginService(users, &fakeHasher{}, nil, zaptest.NewLogger(t))

	if _, err := svc.Authenticate(context.Background(), "alice", "something"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown format, got %v", err)
	}
}
