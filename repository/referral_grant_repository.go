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

// ReferralGrantRepository implements the ReferralGrantRepository interface
type ReferralGrantRepository struct {
	q queryable
}

// NewReferralGrantRepository creates a new referral grant repository
func NewReferralGrantRepository(db *database.DB) *ReferralGrantRepository {
	return &ReferralGrantRepository{q: db.Pool}
}

// newReferralGrantRepositoryWithTx creates a new referral grant repository with a transaction
func newReferralGrantRepositoryWithTx(tx queryable) *ReferralGrantRepository {
	return &ReferralGrantRepository{q: tx}
}

// Create inserts a new grant
func (r *ReferralGrantRepository) Create(ctx context.Context, grant *models.ReferralGrant) error {
	query := `
		INSERT INTO referral_credit_grants (id, user_id, amount, remaining, source, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		grant.ID, grant.UserID, grant.Amount, grant.Remaining, grant.Source, grant.CreatedAt, grant.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create referral grant for user %s: %w", grant.UserID, err)
	}
	return nil
}

// ValidTotal sums remaining over grants that have not expired
func (r *ReferralGrantRepository) ValidTotal(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(remaining), 0)
		FROM referral_credit_grants
		WHERE user_id = $1 AND remaining > 0 AND expires_at > $2
	`

	var total int
	if err := r.q.QueryRow(ctx, query, userID, now).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum valid grants for user %s: %w", userID, err)
	}
	return total, nil
}

// OldestValid returns the unexpired grant with remaining credits that was
// created first, or nil if none exists
func (r *ReferralGrantRepository) OldestValid(ctx context.Context, userID uuid.UUID, now time.Time) (*models.ReferralGrant, error) {
	query := `
		SELECT id, user_id, amount, remaining, source, created_at, expires_at
		FROM referral_credit_grants
		WHERE user_id = $1 AND remaining > 0 AND expires_at > $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	var grant models.ReferralGrant
	err := r.q.QueryRow(ctx, query, userID, now).Scan(
		&grant.ID,
		&grant.UserID,
		&grant.Amount,
		&grant.Remaining,
		&grant.Source,
		&grant.CreatedAt,
		&grant.ExpiresAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oldest valid grant for user %s: %w", userID, err)
	}

	return &grant, nil
}

// ConsumeCredit decrements a grant's remaining by one as a single conditional
// update. Returns false when the grant was already drained or expired.
func (r *ReferralGrantRepository) ConsumeCredit(ctx context.Context, grantID uuid.UUID, now time.Time) (int, bool, error) {
	query := `
		UPDATE referral_credit_grants
		SET remaining = remaining - 1
		WHERE id = $1 AND remaining > 0 AND expires_at > $2
		RETURNING remaining
	`

	var remaining int
	err := r.q.QueryRow(ctx, query, grantID, now).Scan(&remaining)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume credit from grant %s: %w", grantID, err)
	}

	return remaining, true, nil
}

// Delete removes a grant
func (r *ReferralGrantRepository) Delete(ctx context.Context, grantID uuid.UUID) error {
	query := `DELETE FROM referral_credit_grants WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, grantID); err != nil {
		return fmt.Errorf("failed to delete grant %s: %w", grantID, err)
	}
	return nil
}

// DeleteExpired removes all of a user's expired grants and returns the total
// credits that were still remaining on them
func (r *ReferralGrantRepository) DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	query := `
		WITH expired AS (
			DELETE FROM referral_credit_grants
			WHERE user_id = $1 AND expires_at <= $2
			RETURNING remaining
		)
		SELECT COALESCE(SUM(remaining), 0) FROM expired
	`

	var removed int
	if err := r.q.QueryRow(ctx, query, userID, now).Scan(&removed); err != nil {
		return 0, fmt.Errorf("failed to delete expired grants for user %s: %w", userID, err)
	}
	return removed, nil
}

// ListUserIDsWithExpired returns users holding at least one expired grant
func (r *ReferralGrantRepository) ListUserIDsWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM referral_credit_grants
		WHERE expires_at <= $1
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with expired grants: %w", err)
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users with expired grants: %w", err)
	}

	return userIDs, nil
}
