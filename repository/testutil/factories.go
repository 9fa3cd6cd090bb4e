package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mise/database"
	"mise/models"
)

// CreateTestAccount creates a credit account with default first-week values
func CreateTestAccount(userID uuid.UUID) *models.CreditAccount {
	now := time.Now()
	return &models.CreditAccount{
		UserID:          userID,
		StandardCredits: 5,
		CreditsResetAt:  now.AddDate(0, 0, 7),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateTestAccountWithCredits creates a credit account with a specific balance
func CreateTestAccountWithCredits(userID uuid.UUID, credits int) *models.CreditAccount {
	acct := CreateTestAccount(userID)
	acct.StandardCredits = credits
	return acct
}

// CreateTestGrant creates a referral grant valid for 30 days
func CreateTestGrant(userID uuid.UUID, amount int) *models.ReferralGrant {
	now := time.Now()
	return &models.ReferralGrant{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Remaining: amount,
		Source:    models.GrantSourceReferee,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, 30),
	}
}

// CreateExpiredGrant creates a referral grant whose window has already closed
func CreateExpiredGrant(userID uuid.UUID, amount int) *models.ReferralGrant {
	grant := CreateTestGrant(userID, amount)
	grant.CreatedAt = time.Now().AddDate(0, 0, -31)
	grant.ExpiresAt = time.Now().AddDate(0, 0, -1)
	return grant
}

// CreateTestCode creates a referral code row
func CreateTestCode(userID uuid.UUID, code string) *models.ReferralCode {
	return &models.ReferralCode{
		ID:     uuid.New(),
		UserID: userID,
		Code:   code,
	}
}

// CreateTestRedemption creates a redemption row linking referee to referrer
func CreateTestRedemption(referrerID, refereeID, codeID uuid.UUID) *models.ReferralRedemption {
	return &models.ReferralRedemption{
		ID:             uuid.New(),
		ReferrerUserID: referrerID,
		RefereeUserID:  refereeID,
		ReferralCodeID: codeID,
		CreditsAwarded: 5,
		CreatedAt:      time.Now(),
	}
}

// CreateTestSweepRun creates an expiry sweep run for the given date
func CreateTestSweepRun(runDate time.Time) *models.ExpirySweepRun {
	return &models.ExpirySweepRun{
		RunDate:             runDate,
		TotalCreditsExpired: 8,
		UsersAffected:       3,
		ExecutionSummary: map[string]interface{}{
			"candidate_users": 4,
			"failures":        0,
		},
	}
}

// InsertUserProfile seeds a row in the auth service's user_profiles table
func InsertUserProfile(t *testing.T, db *database.DB, userID uuid.UUID, displayName string) {
	_, err := db.Exec(context.Background(),
		`INSERT INTO user_profiles (user_id, display_name) VALUES ($1, $2)`,
		userID, displayName)
	require.NoError(t, err)
}
