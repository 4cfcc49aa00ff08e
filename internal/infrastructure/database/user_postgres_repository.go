package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
)

// pgxUserRepository implements repository.UserRepository using pgx.
type pgxUserRepository struct {
	db *pgxpool.Pool
}

// NewPgxUserRepository creates a new instance of pgxUserRepository.
func NewPgxUserRepository(db *pgxpool.Pool) repository.UserRepository {
	return &pgxUserRepository{db: db}
}

const userColumns = `
	id, tenant_id, email, password_hash, email_verified_at,
	totp_secret, totp_enabled, login_count, last_login_at,
	version, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.EmailVerifiedAt,
		&user.TOTPSecret, &user.TOTPEnabled, &user.LoginCount, &user.LastLoginAt,
		&user.Version, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// Create persists a new user at version 1.
func (r *pgxUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, tenant_id, email, password_hash, email_verified_at,
			totp_secret, totp_enabled, login_count, last_login_at,
			version, created_at, updated_at, deleted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.TenantID, user.Email, user.PasswordHash, user.EmailVerifiedAt,
		user.TOTPSecret, user.TOTPEnabled, user.LoginCount, user.LastLoginAt,
		user.Version, user.CreatedAt, user.UpdatedAt, user.DeletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "users_tenant_email_key") {
				return domainErrors.ErrEmailExists
			}
			return domainErrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by id, excluding tombstoned rows.
func (r *pgxUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByIDIncludingDeleted retrieves a user by id regardless of tombstone
// state. The deletion paths need to see soft-deleted rows; everything else
// goes through FindByID.
func (r *pgxUserRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByEmail retrieves a user within a tenant by email.
func (r *pgxUserRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRow(ctx, query, tenantID, email))
}

// Update writes the user's mutable fields guarded by the version the caller
// read. The version increments atomically with the write; zero rows affected
// means a concurrent writer got there first.
func (r *pgxUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			email = $1,
			password_hash = $2,
			email_verified_at = $3,
			totp_secret = $4,
			totp_enabled = $5,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $6 AND version = $7 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query,
		user.Email, user.PasswordHash, user.EmailVerifiedAt,
		user.TOTPSecret, user.TOTPEnabled,
		user.ID, user.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or the version is stale. Distinguish so
		// callers can react with the right error.
		var exists bool
		checkErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`, user.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check user existence: %w", checkErr)
		}
		if !exists {
			return domainErrors.ErrUserNotFound
		}
		return domainErrors.ErrVersionConflict
	}
	user.Version++
	return nil
}

// RecordLogin stamps last_login_at and bumps login_count. Login bookkeeping
// deliberately bypasses the version check: concurrent logins are not
// conflicting business updates, and the counter increment is atomic anyway.
func (r *pgxUserRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users SET
			last_login_at = $1,
			login_count = login_count + 1,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

// SoftDelete tombstones the user. The row stays recoverable until purged.
func (r *pgxUserRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users SET
			deleted_at = NOW(),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

// Purge removes the row permanently, tombstoned or not. Recovery codes and
// other child rows cascade at the database level.
func (r *pgxUserRepository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to purge user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

var _ repository.UserRepository = (*pgxUserRepository)(nil)
