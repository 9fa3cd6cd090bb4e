package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mise/database"
	"mise/models"
)

// CreditAccountRepository implements the CreditAccountRepository interface
type CreditAccountRepository struct {
	q queryable
}

// NewCreditAccountRepository creates a new credit account repository
func NewCreditAccountRepository(db *database.DB) *CreditAccountRepository {
	return &CreditAccountRepository{q: db.Pool}
}

// newCreditAccountRepositoryWithTx creates a new credit account repository with a transaction
func newCreditAccountRepositoryWithTx(tx queryable) *CreditAccountRepository {
	return &CreditAccountRepository{q: tx}
}

// GetByUserID retrieves an account by user ID, or nil if it does not exist
func (r *CreditAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	query := `
		SELECT user_id, standard_credits, credits_reset_at, first_week_ends_at,
		       referral_credits_cache, created_at, updated_at
		FROM user_credit_accounts
		WHERE user_id = $1
	`

	var acct models.CreditAccount
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&acct.UserID,
		&acct.StandardCredits,
		&acct.CreditsResetAt,
		&acct.FirstWeekEndsAt,
		&acct.ReferralCredits,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit account for user %s: %w", userID, err)
	}

	return &acct, nil
}

// Create inserts a new account. Returns false when the account already
// existed: concurrent lazy creation loses quietly via ON CONFLICT DO NOTHING.
func (r *CreditAccountRepository) Create(ctx context.Context, account *models.CreditAccount) (bool, error) {
	query := `
		INSERT INTO user_credit_accounts (user_id, standard_credits, credits_reset_at, first_week_ends_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, account.UserID, account.StandardCredits, account.CreditsResetAt, account.FirstWeekEndsAt)
	if err != nil {
		return false, fmt.Errorf("failed to create credit account for user %s: %w", account.UserID, err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeductStandardCredit decrements standard_credits by one as a single
// conditional update so concurrent deductions can never drive the balance
// negative. Returns false when no standard credits remained.
func (r *CreditAccountRepository) DeductStandardCredit(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	query := `
		UPDATE user_credit_accounts
		SET standard_credits = standard_credits - 1,
		    updated_at = NOW()
		WHERE user_id = $1 AND standard_credits > 0
		RETURNING standard_credits
	`

	var newBalance int
	err := r.q.QueryRow(ctx, query, userID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to deduct standard credit for user %s: %w", userID, err)
	}

	return newBalance, true, nil
}

// ApplyWeeklyReset writes the reset outcome guarded by a compare-and-swap on
// the observed credits_reset_at. Of two racing resets only one matches the
// observed boundary; the loser gets false and must re-read.
func (r *CreditAccountRepository) ApplyWeeklyReset(ctx context.Context, userID uuid.UUID, observedResetAt time.Time, newCredits int, nextResetAt time.Time, firstWeekEndsAt time.Time) (bool, error) {
	query := `
		UPDATE user_credit_accounts
		SET standard_credits = $1,
		    credits_reset_at = $2,
		    first_week_ends_at = COALESCE(first_week_ends_at, $3),
		    updated_at = NOW()
		WHERE user_id = $4 AND credits_reset_at = $5
	`

	tag, err := r.q.Exec(ctx, query, newCredits, nextResetAt, firstWeekEndsAt, userID, observedResetAt)
	if err != nil {
		return false, fmt.Errorf("failed to apply weekly reset for user %s: %w", userID, err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdateReferralCache refreshes the denormalized referral credit total
func (r *CreditAccountRepository) UpdateReferralCache(ctx context.Context, userID uuid.UUID, total int) error {
	query := `
		UPDATE user_credit_accounts
		SET referral_credits_cache = $1,
		    updated_at = NOW()
		WHERE user_id = $2
	`

	if _, err := r.q.Exec(ctx, query, total, userID); err != nil {
		return fmt.Errorf("failed to update referral cache for user %s: %w", userID, err)
	}
	return nil
}
