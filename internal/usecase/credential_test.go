package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

func TestCredentialService_EnrollSuccess(t *testing.T) {
	users := &userRepoMock{}
	events := &eventPublisherMock{}

	svc := NewCredentialService(users, &fakeHasher{}, fakePolicy{}, events, zaptest.NewLogger(t))
	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	user, err := svc.Enroll(context.Background(), EnrollInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Brand-New-Passw0rd",
	})
	if err != nil {
		t.Fatalf("Enroll returned error: %v", err)
	}

	if len(users.created) != 1 {
		t.Fatalf("expected one created user, got %d", len(users.created))
	}
	created := users.created[0]
	if created.Credential.Format != domain.CredentialFormatHashed {
		t.Fatalf("expected hashed format, got %q", created.Credential.Format)
	}
	if created.Credential.Value != "hashed:Brand-New-Passw0rd" {
		t.Fatalf("unexpected stored credential %q", created.Credential.Value)
	}
	if !created.RegisteredAt.Equal(fixed) {
		t.Fatalf("expected registered at %v, got %v", fixed, created.RegisteredAt)
	}
	if user.Credential.Value != "" {
		t.Fatalf("expected credential stripped from returned user")
	}
}

func TestCredentialService_EnrollWeakPassword(t *testing.T) {
	users := &userRepoMock{}
	svc := NewCredentialService(users, &fakeHasher{}, fakePolicy{}, nil, zaptest.NewLogger(t))

	_, err := svc.Enroll(context.Background(), EnrollInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "tiny",
	})

	var policyErr *PolicyViolationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyViolationError, got %v", err)
	}
	if len(users.created) != 0 {
		t.Fatalf("expected no user created for weak password")
	}
}

func TestCredentialService_ChangeSuccess(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Username:   "alice",
		Credential: domain.StoredCredential{Value: "hashed:old-password", Format: domain.CredentialFormatHashed},
		IsActive:   true,
		Status:     domain.UserStatusActive,
	}
	users := &userRepoMock{byID: map[string]domain.User{"user-1": user}}
	events := &eventPublisherMock{}

	svc := NewCredentialService(users, &fakeHasher{}, fakePolicy{}, events, zaptest.NewLogger(t))

	result, err := svc.Change(context.Background(), ChangeInput{
		UserID:          "user-1",
		CurrentPassword: "old-password",
		NewPassword:     "Brand-New-Passw0rd",
	})
	if err != nil {
		t.Fatalf("Change returned error: %v", err)
	}
	if result.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", result.UserID)
	}

	if users.updatedCredential.Value != "hashed:Brand-New-Passw0rd" {
		t.Fatalf("unexpected stored credential %q", users.updatedCredential.Value)
	}
	if len(events.changed) != 1 || events.changed[0].Reason != credentialChangeReason {
		t.Fatalf("expected one change event, got %+v", events.changed)
	}
}

func TestCredentialService_ChangeWrongCurrentPassword(t *testing.T) {
	user := domain.User{
		ID:         "user-1",
		Credential: domain.StoredCredential{Value: "hashed:old-password", Format: domain.CredentialFormatHashed},
	}
	users := &userRepoMock{byID: map[string]domain.User{"user-1": user}}

	svc := NewCredentialService(users, &fakeHasher{}, fakePolicy{}, nil, zaptest.NewLogger(t))

	_, err := svc.Change(context.Background(), ChangeInput{
		UserID:          "user-1",
		CurrentPassword: "guess",
		NewPassword:     "Brand-New-Passw0rd",
	})
	if !errors.Is(err, ErrCurrentPasswordInvalid) {
		t.Fatalf("expected ErrCurrentPasswordInvalid, got %v", err)
	}
	if users.updatedID != "" {
		t.Fatalf("expected no credential write")
	}
}

func TestCredentialService_ChangeMissingCurrentPassword(t *testing.T) {
	svc := NewCredentialService(&userRepoMock{}, &fakeHasher{}, fakePolicy{}, nil, zaptest.NewLogger(t))

	_, err := svc.Change(context.Background(), ChangeInput{
		UserID:      "user-1",
		NewPassword: "Brand-New-Passw0rd",
	})
	if !errors.Is(err, ErrCurrentPasswordRequired) {
		t.Fatalf("expected ErrCurrentPasswordRequired, got %v", err)
	}
}

func TestCredentialService_ChangeUnknownUser(t *testing.T) {
	svc := NewCredentialService(&userRepoMock{byID: map[string]domain.User{}}, &fakeHasher{}, fakePolicy{}, nil, zaptest.NewLogger(t))

	_, err := svc.Change(context.Background(), ChangeInput{
		UserID:          "ghost",
		CurrentPassword: "whatever",
		NewPassword:     "Brand-New-Passw0rd",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
