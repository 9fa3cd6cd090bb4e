package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mise/database"
	"mise/models"
)

// SubscriptionRepository implements the SubscriptionRepository interface
type SubscriptionRepository struct {
	q queryable
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *database.DB) *SubscriptionRepository {
	return &SubscriptionRepository{q: db.Pool}
}

// newSubscriptionRepositoryWithTx creates a new subscription repository with a transaction
func newSubscriptionRepositoryWithTx(tx queryable) *SubscriptionRepository {
	return &SubscriptionRepository{q: tx}
}

// GetByUserID retrieves a user's subscription record, or nil
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubscriptionRecord, error) {
	query := `
		SELECT user_id, is_active, is_trial, expires_at, updated_at
		FROM subscription_records
		WHERE user_id = $1
	`

	var record models.SubscriptionRecord
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.IsActive,
		&record.IsTrial,
		&record.ExpiresAt,
		&record.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription for user %s: %w", userID, err)
	}

	return &record, nil
}

// Upsert inserts or replaces a subscription record; last write wins
func (r *SubscriptionRepository) Upsert(ctx context.Context, record *models.SubscriptionRecord) error {
	query := `
		INSERT INTO subscription_records (user_id, is_active, is_trial, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET is_active = EXCLUDED.is_active,
		    is_trial = EXCLUDED.is_trial,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, record.UserID, record.IsActive, record.IsTrial, record.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert subscription for user %s: %w", record.UserID, err)
	}
	return nil
}
