package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferralGrant(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	grant, err := NewReferralGrant(userID, 5, GrantSourceReferee, now, 30)
	require.NoError(t, err)

	assert.Equal(t, userID, grant.UserID)
	assert.Equal(t, 5, grant.Amount)
	assert.Equal(t, 5, grant.Remaining)
	assert.Equal(t, GrantSourceReferee, grant.Source)
	assert.Equal(t, now.AddDate(0, 0, 30), grant.ExpiresAt)
}

func TestNewReferralGrant_Invalid(t *testing.T) {
	now := time.Now()

	_, err := NewReferralGrant(uuid.New(), 0, GrantSourceReferee, now, 30)
	assert.Error(t, err)

	_, err = NewReferralGrant(uuid.New(), -3, GrantSourceReferrer, now, 30)
	assert.Error(t, err)

	_, err = NewReferralGrant(uuid.New(), 5, GrantSource("friend"), now, 30)
	assert.Error(t, err)
}

func TestReferralGrant_Valid(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	grant := &ReferralGrant{Remaining: 2, ExpiresAt: now.AddDate(0, 0, 1)}
	assert.True(t, grant.Valid(now))

	drained := &ReferralGrant{Remaining: 0, ExpiresAt: now.AddDate(0, 0, 1)}
	assert.False(t, drained.Valid(now))

	expired := &ReferralGrant{Remaining: 2, ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.Valid(now))

	// Expiring exactly now counts as expired
	boundary := &ReferralGrant{Remaining: 2, ExpiresAt: now}
	assert.False(t, boundary.Valid(now))
}

func TestCreditAccount_IsFirstWeek(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	fresh := &CreditAccount{}
	assert.True(t, fresh.IsFirstWeek(now), "never-reset account is in its first week")

	future := now.AddDate(0, 0, 3)
	inWindow := &CreditAccount{FirstWeekEndsAt: &future}
	assert.True(t, inWindow.IsFirstWeek(now))

	past := now.AddDate(0, 0, -3)
	veteran := &CreditAccount{FirstWeekEndsAt: &past}
	assert.False(t, veteran.IsFirstWeek(now))
}

func TestCreditAccount_ResetDue(t *testing.T) {
	boundary := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	acct := &CreditAccount{CreditsResetAt: boundary}

	assert.False(t, acct.ResetDue(boundary.Add(-time.Second)))
	assert.True(t, acct.ResetDue(boundary), "reset fires exactly at the boundary")
	assert.True(t, acct.ResetDue(boundary.Add(time.Hour)))
}

func TestSubscriptionRecord_Premium(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 1, 0)
	past := now.AddDate(0, -1, 0)

	var missing *SubscriptionRecord
	assert.False(t, missing.Premium(now))

	assert.True(t, (&SubscriptionRecord{IsActive: true}).Premium(now))
	assert.True(t, (&SubscriptionRecord{IsActive: true, ExpiresAt: &future}).Premium(now))
	assert.True(t, (&SubscriptionRecord{IsActive: true, IsTrial: true, ExpiresAt: &future}).Premium(now))
	assert.False(t, (&SubscriptionRecord{IsActive: true, ExpiresAt: &past}).Premium(now))
	assert.False(t, (&SubscriptionRecord{IsActive: false, ExpiresAt: &future}).Premium(now))
}
