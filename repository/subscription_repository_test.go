package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/models"
	"mise/repository/testutil"
)

func TestSubscriptionRepository_Upsert(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewSubscriptionRepository(testDB.DB)
	ctx := context.Background()
	userID := uuid.New()

	missing, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	expiry := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, &models.SubscriptionRecord{
		UserID:    userID,
		IsActive:  true,
		IsTrial:   true,
		ExpiresAt: &expiry,
	}))

	record, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.IsActive)
	assert.True(t, record.IsTrial)
	require.NotNil(t, record.ExpiresAt)
	assert.True(t, record.ExpiresAt.Equal(expiry))

	// Cancellation overwrites: last write wins
	require.NoError(t, repo.Upsert(ctx, &models.SubscriptionRecord{
		UserID:   userID,
		IsActive: false,
	}))

	record, err = repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.False(t, record.IsActive)
	assert.False(t, record.IsTrial)
	assert.Nil(t, record.ExpiresAt)
}

func TestUserProfileRepository_DisplayName(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserProfileRepository(testDB.DB)
	ctx := context.Background()
	userID := uuid.New()

	name, err := repo.DisplayName(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "", name, "missing profile degrades to an empty name")

	testutil.InsertUserProfile(t, testDB.DB, userID, "Julia")

	name, err = repo.DisplayName(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Julia", name)
}
