package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mise/database"
)

// UserProfileRepository is a read-only lookup into the auth service's
// user_profiles table, used to show referrer names on code validation.
type UserProfileRepository struct {
	q queryable
}

// NewUserProfileRepository creates a new user profile repository
func NewUserProfileRepository(db *database.DB) *UserProfileRepository {
	return &UserProfileRepository{q: db.Pool}
}

// newUserProfileRepositoryWithTx creates a new user profile repository with a transaction
func newUserProfileRepositoryWithTx(tx queryable) *UserProfileRepository {
	return &UserProfileRepository{q: tx}
}

// DisplayName returns a user's display name, or "" when the profile is
// missing. A missing profile is not an error; the caller degrades to an
// anonymous referrer.
func (r *UserProfileRepository) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT display_name
		FROM user_profiles
		WHERE user_id = $1
	`

	var name string
	err := r.q.QueryRow(ctx, query, userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get display name for user %s: %w", userID, err)
	}

	return name, nil
}
