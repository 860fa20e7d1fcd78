package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/repository"
)

var recoveryTokenColumns = []string{
	"id",
	"user_id",
	"token_hash",
	"purpose",
	"ip_address",
	"user_agent",
	"created_at",
	"expires_at",
	"used_at",
	"metadata",
}

// RecoveryTokenRepository implements port.RecoveryTokenStore using PostgreSQL.
type RecoveryTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRecoveryTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRecoveryTokenRepository(exec pgExecutor) *RecoveryTokenRepository {
	repo := &RecoveryTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *RecoveryTokenRepository) WithTx(tx pgx.Tx) *RecoveryTokenRepository {
	if tx == nil {
		return r
	}
	return &RecoveryTokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new recovery token record. Only the token hash is stored.
func (r *RecoveryTokenRepository) Create(ctx context.Context, token domain.RecoveryToken) error {
	var metadataJSON []byte
	if token.Metadata != nil {
		encoded, err := json.Marshal(token.Metadata)
		if err != nil {
			return fmt.Errorf("marshal recovery token metadata: %w", err)
		}
		metadataJSON = encoded
	}

	query := r.builder.Insert("credentials.recovery_tokens").
		Columns(recoveryTokenColumns...).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			token.Purpose,
			token.IP,
			token.UserAgent,
			token.CreatedAt,
			token.ExpiresAt,
			token.UsedAt,
			metadataJSON,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert recovery token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert recovery token: %w", err)
	}

	return nil
}

// GetByHash retrieves a recovery token by its SHA-256 hash.
func (r *RecoveryTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RecoveryToken, error) {
	stmt, args, err := r.builder.
		Select(recoveryTokenColumns...).
		From("credentials.recovery_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select recovery token sql: %w", err)
	}

	var (
		token        domain.RecoveryToken
		metadataJSON []byte
	)

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.Purpose,
		&token.IP,
		&token.UserAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
		&metadataJSON,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan recovery token: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &token.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal recovery token metadata: %w", err)
		}
	}

	return &token, nil
}

// MarkConsumed records the token as used. The update is conditional on
// used_at still being NULL, so exactly one of two racing resets succeeds.
func (r *RecoveryTokenRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("credentials.recovery_tokens").
		Set("used_at", at).
		Where(squirrel.Eq{"id": id}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume recovery token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume recovery token: %w", err)
	}

	if ct.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the token never existed or another caller consumed
	// it first. Distinguish so callers can report the race precisely.
	existsStmt, existsArgs, err := r.builder.
		Select("1").
		From("credentials.recovery_tokens").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build recovery token existence sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, existsStmt, existsArgs...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check recovery token existence: %w", err)
	}

	return repository.ErrAlreadyConsumed
}

var _ port.RecoveryTokenStore = (*RecoveryTokenRepository)(nil)
