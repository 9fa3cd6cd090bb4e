package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mise/database"
	"mise/models"
	"mise/service"
)

// ReferralCodeRepository implements the ReferralCodeRepository interface
type ReferralCodeRepository struct {
	q queryable
}

// NewReferralCodeRepository creates a new referral code repository
func NewReferralCodeRepository(db *database.DB) *ReferralCodeRepository {
	return &ReferralCodeRepository{q: db.Pool}
}

// newReferralCodeRepositoryWithTx creates a new referral code repository with a transaction
func newReferralCodeRepositoryWithTx(tx queryable) *ReferralCodeRepository {
	return &ReferralCodeRepository{q: tx}
}

// GetByUserID retrieves a user's code, or nil if none exists
func (r *ReferralCodeRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	query := `
		SELECT id, user_id, code, uses_count, created_at
		FROM referral_codes
		WHERE user_id = $1
	`

	var code models.ReferralCode
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.UsesCount,
		&code.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral code for user %s: %w", userID, err)
	}

	return &code, nil
}

// GetByCode retrieves a code row by its normalized code, or nil
func (r *ReferralCodeRepository) GetByCode(ctx context.Context, normalized string) (*models.ReferralCode, error) {
	query := `
		SELECT id, user_id, code, uses_count, created_at
		FROM referral_codes
		WHERE code = $1
	`

	var code models.ReferralCode
	err := r.q.QueryRow(ctx, query, normalized).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.UsesCount,
		&code.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral code %q: %w", normalized, err)
	}

	return &code, nil
}

// Create inserts a new code. A unique violation on either the code or the
// user maps to ErrDuplicateCode so the generator can retry.
func (r *ReferralCodeRepository) Create(ctx context.Context, code *models.ReferralCode) error {
	query := `
		INSERT INTO referral_codes (id, user_id, code)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query, code.ID, code.UserID, code.Code).Scan(&code.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create referral code for user %s: %w", code.UserID, err)
	}
	return nil
}

// IncrementUses bumps uses_count by one
func (r *ReferralCodeRepository) IncrementUses(ctx context.Context, codeID uuid.UUID) error {
	query := `
		UPDATE referral_codes
		SET uses_count = uses_count + 1
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, codeID)
	if err != nil {
		return fmt.Errorf("failed to increment uses for code %s: %w", codeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral code %s not found", codeID)
	}
	return nil
}
