package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketgrid/credential-service/internal/core/domain"
	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"phone",
	"credential",
	"credential_format",
	"status",
	"is_active",
	"registered_at",
	"last_login",
	"last_password_change",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var emailValue any
	if user.Email != "" {
		emailValue = user.Email
	}

	var phoneValue any
	if user.Phone != nil && *user.Phone != "" {
		phoneValue = *user.Phone
	}

	query := r.builder.Insert("credentials.users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			emailValue,
			phoneValue,
			user.Credential.Value,
			user.Credential.Format,
			user.Status,
			user.IsActive,
			user.RegisteredAt,
			user.LastLogin,
			user.LastPasswordChange,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("credentials.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier retrieves a user by username, email, or phone.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("credentials.users").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
			squirrel.Eq{"phone": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by identifier sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdateCredential replaces the stored credential unconditionally.
func (r *UserRepository) UpdateCredential(ctx context.Context, id string, credential domain.StoredCredential, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("credentials.users").
		Set("credential", credential.Value).
		Set("credential_format", credential.Format).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update credential sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpgradeLegacyCredential replaces a plaintext credential with its hashed
// form. The WHERE clause keeps the update conditional on the row still being
// legacy, so concurrent logins upgrade at most once.
func (r *UserRepository) UpgradeLegacyCredential(ctx context.Context, id string, hashed string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("credentials.users").
		Set("credential", hashed).
		Set("credential_format", domain.CredentialFormatHashed).
		Set("last_password_change", changedAt).
		Where(squirrel.Eq{
			"id":                id,
			"credential_format": domain.CredentialFormatLegacyPlaintext,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upgrade credential sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("upgrade credential: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		email     sql.NullString
		phone     sql.NullString
		lastLogin *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&email,
		&phone,
		&user.Credential.Value,
		&user.Credential.Format,
		&user.Status,
		&user.IsActive,
		&user.RegisteredAt,
		&lastLogin,
		&user.LastPasswordChange,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	if phone.Valid {
		phoneValue := phone.String
		user.Phone = &phoneValue
	}
	user.LastLogin = lastLogin

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
