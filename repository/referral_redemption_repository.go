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

// ReferralRedemptionRepository implements the ReferralRedemptionRepository interface
type ReferralRedemptionRepository struct {
	q queryable
}

// NewReferralRedemptionRepository creates a new referral redemption repository
func NewReferralRedemptionRepository(db *database.DB) *ReferralRedemptionRepository {
	return &ReferralRedemptionRepository{q: db.Pool}
}

// newReferralRedemptionRepositoryWithTx creates a new referral redemption repository with a transaction
func newReferralRedemptionRepositoryWithTx(tx queryable) *ReferralRedemptionRepository {
	return &ReferralRedemptionRepository{q: tx}
}

// Create inserts a redemption. The unique constraint on referee_user_id is
// the authoritative once-ever guard; a violation maps to ErrAlreadyRedeemed.
func (r *ReferralRedemptionRepository) Create(ctx context.Context, redemption *models.ReferralRedemption) error {
	query := `
		INSERT INTO referral_redemptions (id, referrer_user_id, referee_user_id, referral_code_id, credits_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		redemption.ID,
		redemption.ReferrerUserID,
		redemption.RefereeUserID,
		redemption.ReferralCodeID,
		redemption.CreditsAwarded,
		redemption.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrAlreadyRedeemed
		}
		return fmt.Errorf("failed to create redemption for referee %s: %w", redemption.RefereeUserID, err)
	}
	return nil
}

// GetByRefereeID retrieves the redemption a user performed, or nil
func (r *ReferralRedemptionRepository) GetByRefereeID(ctx context.Context, refereeUserID uuid.UUID) (*models.ReferralRedemption, error) {
	query := `
		SELECT id, referrer_user_id, referee_user_id, referral_code_id, credits_awarded, created_at
		FROM referral_redemptions
		WHERE referee_user_id = $1
	`

	var redemption models.ReferralRedemption
	err := r.q.QueryRow(ctx, query, refereeUserID).Scan(
		&redemption.ID,
		&redemption.ReferrerUserID,
		&redemption.RefereeUserID,
		&redemption.ReferralCodeID,
		&redemption.CreditsAwarded,
		&redemption.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get redemption for referee %s: %w", refereeUserID, err)
	}

	return &redemption, nil
}
