package models

import (
	"time"

	"github.com/google/uuid"
)

// CodeLength is the fixed length of a referral code after normalization.
const CodeLength = 8

// ReferralCode is a user's shareable code. One per user, created lazily.
type ReferralCode struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Code      string    `db:"code"`
	UsesCount int       `db:"uses_count"`
	CreatedAt time.Time `db:"created_at"`
}

// ReferralRedemption records a referee applying someone else's code.
// Immutable; the uniqueness of RefereeUserID enforces at-most-once redemption.
type ReferralRedemption struct {
	ID             uuid.UUID `db:"id"`
	ReferrerUserID uuid.UUID `db:"referrer_user_id"`
	RefereeUserID  uuid.UUID `db:"referee_user_id"`
	ReferralCodeID uuid.UUID `db:"referral_code_id"`
	CreditsAwarded int       `db:"credits_awarded"`
	CreatedAt      time.Time `db:"created_at"`
}
