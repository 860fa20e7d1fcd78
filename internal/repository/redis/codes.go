package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/repository"
)

const (
	defaultCodePrefix = "recovery_code"

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// RecoveryCodeRepository persists short-lived SMS recovery codes in Redis.
// Each user has at most one active code; storing a new code overwrites the
// previous one along with its attempt counter.
type RecoveryCodeRepository struct {
	client *red.Client
	prefix string
}

// NewRecoveryCodeRepository constructs a code store with the provided Redis
// client and key prefix.
func NewRecoveryCodeRepository(client *red.Client, keyPrefix string) *RecoveryCodeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCodePrefix
	}

	return &RecoveryCodeRepository{
		client: client,
		prefix: prefix,
	}
}

// Put stores the recovery code with the supplied TTL, resetting attempts.
func (r *RecoveryCodeRepository) Put(ctx context.Context, code domain.RecoveryCode, ttl time.Duration) error {
	switch {
	case strings.TrimSpace(code.UserID) == "":
		return errors.New("user id is required")
	case strings.TrimSpace(code.Code) == "":
		return errors.New("code is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := r.key(code.UserID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      code.Code,
		fieldCreatedAt: strconv.FormatInt(code.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(code.ExpiresAt.Unix(), 10),
		fieldAttempts:  "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store recovery code: %w", err)
	}

	return nil
}

// Get retrieves the active recovery code for the user.
func (r *RecoveryCodeRepository) Get(ctx context.Context, userID string) (*domain.RecoveryCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall recovery code: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.RecoveryCode{
		UserID:    userID,
		Code:      code,
		Attempts:  attempts,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IncrementAttempts atomically bumps the failed-attempt counter and returns
// the new value. The counter lives in the same hash as the code. HINCRBY
// recreates the hash if the key expired between the lookup and the
// increment, so the code's deadline is re-applied afterwards: EXPIREAT with
// a past deadline deletes the key, which also clears any recreated orphan.
func (r *RecoveryCodeRepository) IncrementAttempts(ctx context.Context, userID string) (int, error) {
	code, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	key := r.key(strings.TrimSpace(userID))

	count, err := r.client.HIncrBy(ctx, key, fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby recovery code attempts: %w", err)
	}

	if err := r.client.ExpireAt(ctx, key, code.ExpiresAt).Err(); err != nil {
		return 0, fmt.Errorf("redis expire recovery code: %w", err)
	}

	return int(count), nil
}

// Delete removes the recovery code, enforcing single-use semantics.
func (r *RecoveryCodeRepository) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}

	deleted, err := r.client.Del(ctx, r.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("redis delete recovery code: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *RecoveryCodeRepository) key(userID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.TrimSpace(userID))
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.RecoveryCodeStore = (*RecoveryCodeRepository)(nil)
