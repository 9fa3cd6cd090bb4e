package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount represents a user's standard-credit balance and reset state
type CreditAccount struct {
	UserID           uuid.UUID  `db:"user_id"`
	StandardCredits  int        `db:"standard_credits"`
	CreditsResetAt   time.Time  `db:"credits_reset_at"`
	FirstWeekEndsAt  *time.Time `db:"first_week_ends_at"`
	ReferralCredits  int        `db:"referral_credits_cache"` // Denormalized; recomputed from grants, never authoritative
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// IsFirstWeek reports whether the account is still inside its first-week
// allowance window at the given time. An account that has never been reset
// (first_week_ends_at unset) is always in its first week.
func (a *CreditAccount) IsFirstWeek(now time.Time) bool {
	return a.FirstWeekEndsAt == nil || now.Before(*a.FirstWeekEndsAt)
}

// ResetDue reports whether the lazy weekly reset should run at the given time.
func (a *CreditAccount) ResetDue(now time.Time) bool {
	return !now.Before(a.CreditsResetAt)
}
