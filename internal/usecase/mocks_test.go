package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/repository"
)

type userRepoMock struct {
	mu           sync.Mutex
	byIdentifier map[string]domain.User
	byID         map[string]domain.User

	created []domain.User

	updatedID         string
	updatedCredential domain.StoredCredential
	updatedAt         time.Time
	updateErr         error

	upgradedID   string
	upgradedHash string
	upgradeErr   error
}

func (m *userRepoMock) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, user)
	return nil
}

func (m *userRepoMock) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byID[id]; ok {
		u := user
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.byIdentifier[identifier]; ok {
		u := user
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) UpdateCredential(_ context.Context, id string, credential domain.StoredCredential, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedID = id
	m.updatedCredential = credential
	m.updatedAt = changedAt
	return nil
}

func (m *userRepoMock) UpgradeLegacyCredential(_ context.Context, id string, hashed string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upgradeErr != nil {
		return m.upgradeErr
	}
	m.upgradedID = id
	m.upgradedHash = hashed
	return nil
}

type tokenStoreMock struct {
	mu         sync.Mutex
	stored     *domain.RecoveryToken
	createErr  error
	getErr     error
	consumeErr error
}

func (m *tokenStoreMock) Create(_ context.Context, token domain.RecoveryToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := token
	m.stored = &copied
	return nil
}

func (m *tokenStoreMock) GetByHash(_ context.Context, hash string) (*domain.RecoveryToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.stored == nil || m.stored.TokenHash != hash {
		return nil, repository.ErrNotFound
	}
	copied := *m.stored
	return &copied, nil
}

func (m *tokenStoreMock) MarkConsumed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumeErr != nil {
		return m.consumeErr
	}
	if m.stored == nil || m.stored.ID != id {
		return repository.ErrNotFound
	}
	if m.stored.UsedAt != nil {
		return repository.ErrAlreadyConsumed
	}
	consumedAt := at
	m.stored.UsedAt = &consumedAt
	return nil
}

type codeStoreMock struct {
	mu     sync.Mutex
	codes  map[string]*domain.RecoveryCode
	putErr error
}

func newCodeStoreMock() *codeStoreMock {
	return &codeStoreMock{codes: make(map[string]*domain.RecoveryCode)}
}

func (m *codeStoreMock) Put(_ context.Context, code domain.RecoveryCode, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	copied := code
	copied.Attempts = 0
	m.codes[code.UserID] = &copied
	return nil
}

func (m *codeStoreMock) Get(_ context.Context, userID string) (*domain.RecoveryCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *code
	return &copied, nil
}

func (m *codeStoreMock) IncrementAttempts(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	code.Attempts++
	return code.Attempts, nil
}

func (m *codeStoreMock) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.codes, userID)
	return nil
}

type rateLimitStoreMock struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	recordCalls int
}

func newRateLimitStoreMock() *rateLimitStoreMock {
	return &rateLimitStoreMock{attempts: make(map[string][]time.Time)}
}

func (m *rateLimitStoreMock) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := reference.Add(-window)
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *rateLimitStoreMock) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	cutoff := reference.Add(-window)
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (m *rateLimitStoreMock) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCalls++
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *rateLimitStoreMock) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) && !at.After(reference) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

type eventPublisherMock struct {
	mu         sync.Mutex
	requested  []domain.RecoveryRequestedEvent
	changed    []domain.CredentialChangedEvent
	upgraded   []domain.CredentialUpgradedEvent
	publishErr error
}

func (m *eventPublisherMock) PublishRecoveryRequested(_ context.Context, event domain.RecoveryRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.requested = append(m.requested, event)
	return nil
}

func (m *eventPublisherMock) PublishCredentialChanged(_ context.Context, event domain.CredentialChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.changed = append(m.changed, event)
	return nil
}

func (m *eventPublisherMock) PublishCredentialUpgraded(_ context.Context, event domain.CredentialUpgradedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.upgraded = append(m.upgraded, event)
	return nil
}

type deliveryMock struct {
	mu        sync.Mutex
	emails    []string
	tokens    []string
	phones    []string
	codes     []string
	events    []domain.RecoveryRequestedEvent
	returnErr error
}

func (m *deliveryMock) SendRecoveryEmail(_ context.Context, address string, rawToken string, event domain.RecoveryRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.returnErr != nil {
		return m.returnErr
	}
	m.emails = append(m.emails, address)
	m.tokens = append(m.tokens, rawToken)
	m.events = append(m.events, event)
	return nil
}

func (m *deliveryMock) SendRecoverySMS(_ context.Context, phone string, code string, event domain.RecoveryRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.returnErr != nil {
		return m.returnErr
	}
	m.phones = append(m.phones, phone)
	m.codes = append(m.codes, code)
	m.events = append(m.events, event)
	return nil
}

// fakeHasher keeps orchestration tests fast; derivation itself is covered by
// the security package tests.
type fakeHasher struct {
	hashErr error
}

func (f *fakeHasher) Hash(password string) (string, error) {
	if f.hashErr != nil {
		return "", f.hashErr
	}
	return "hashed:" + password, nil
}

func (f *fakeHasher) Verify(password, stored string) bool {
	return stored == "hashed:"+password
}

func (f *fakeHasher) VerifyPlaintext(password, stored string) bool {
	return stored != "" && stored == password
}

type fakePolicy struct{}

func (fakePolicy) Evaluate(password string, _ domain.PasswordContext) domain.PasswordPolicyResult {
	if len(password) < 8 {
		return domain.PasswordPolicyResult{Valid: false, Reasons: []string{"too short"}}
	}
	score := 1
	if strings.ContainsAny(password, "0123456789") {
		score++
	}
	return domain.PasswordPolicyResult{Valid: true, Score: score}
}

var errStoreDown = errors.New("store unavailable")
