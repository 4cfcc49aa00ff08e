package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/repository"
)

type pgxRecoveryCodeRepository struct {
	db *pgxpool.Pool
}

// NewPgxRecoveryCodeRepository creates a new recovery code repository.
func NewPgxRecoveryCodeRepository(db *pgxpool.Pool) repository.RecoveryCodeRepository {
	return &pgxRecoveryCodeRepository{db: db}
}

// ReplaceForUser atomically swaps the user's recovery code set: old codes,
// used or not, are dropped and the new batch inserted in one transaction.
func (r *pgxRecoveryCodeRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, codes []*models.RecoveryCode) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete old recovery codes: %w", err)
	}

	for _, code := range codes {
		_, err := tx.Exec(ctx,
			`INSERT INTO recovery_codes (id, user_id, ciphertext, created_at) VALUES ($1, $2, $3, $4)`,
			code.ID, code.UserID, code.Ciphertext, code.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recovery code: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recovery codes: %w", err)
	}
	return nil
}

// FindActiveByUserID returns the user's unconsumed codes.
func (r *pgxRecoveryCodeRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.RecoveryCode, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, ciphertext, used_at, created_at
		 FROM recovery_codes
		 WHERE user_id = $1 AND used_at IS NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recovery codes: %w", err)
	}
	defer rows.Close()

	var codes []*models.RecoveryCode
	for rows.Next() {
		code := &models.RecoveryCode{}
		if err := rows.Scan(&code.ID, &code.UserID, &code.Ciphertext, &code.UsedAt, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// MarkUsed consumes a code. The used_at IS NULL guard makes consumption
// first-writer-wins: a second attempt on the same code fails.
func (r *pgxRecoveryCodeRepository) MarkUsed(ctx context.Context, codeID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recovery_codes SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, codeID)
	if err != nil {
		return fmt.Errorf("failed to mark recovery code used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrInvalidCode
	}
	return nil
}

// DeleteForUser removes all of the user's codes.
func (r *pgxRecoveryCodeRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete recovery codes: %w", err)
	}
	return nil
}

var _ repository.RecoveryCodeRepository = (*pgxRecoveryCodeRepository)(nil)
