package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GrantSource identifies which side of a redemption a grant rewards
type GrantSource string

const (
	GrantSourceReferee  GrantSource = "referee"
	GrantSourceReferrer GrantSource = "referrer"
)

// ReferralGrant is one batch of bonus credits with its own remaining balance
// and expiry. Amount is immutable; only Remaining is ever decremented.
type ReferralGrant struct {
	ID        uuid.UUID   `db:"id"`
	UserID    uuid.UUID   `db:"user_id"`
	Amount    int         `db:"amount"`
	Remaining int         `db:"remaining"`
	Source    GrantSource `db:"source"`
	CreatedAt time.Time   `db:"created_at"`
	ExpiresAt time.Time   `db:"expires_at"`
}

// NewReferralGrant constructs a grant with remaining equal to amount and the
// expiry window applied. Amount must be positive.
func NewReferralGrant(userID uuid.UUID, amount int, source GrantSource, now time.Time, expiryDays int) (*ReferralGrant, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if source != GrantSourceReferee && source != GrantSourceReferrer {
		return nil, fmt.Errorf("invalid grant source: %q", source)
	}
	return &ReferralGrant{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Remaining: amount,
		Source:    source,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, expiryDays),
	}, nil
}

// Valid reports whether the grant still has spendable credits at the given time.
func (g *ReferralGrant) Valid(now time.Time) bool {
	return g.Remaining > 0 && g.ExpiresAt.After(now)
}
