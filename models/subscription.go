package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionRecord mirrors the billing collaborator's view of a user's
// subscription. This module only reads it; the billing webhook receiver
// owns the write path.
type SubscriptionRecord struct {
	UserID    uuid.UUID  `db:"user_id"`
	IsActive  bool       `db:"is_active"`
	IsTrial   bool       `db:"is_trial"`
	ExpiresAt *time.Time `db:"expires_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Premium reports whether the subscription entitles the user to bypass the
// credit ledger at the given time.
func (s *SubscriptionRecord) Premium(now time.Time) bool {
	if s == nil || !s.IsActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
