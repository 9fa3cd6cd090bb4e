package service

import (
	"errors"
)

// Sentinel errors for expected outcomes. Genuine storage faults are wrapped
// with %w and surfaced as-is; the ledger never retries mutating operations.
var (
	// ErrInsufficientCredits means a deduction was attempted with no capacity
	// in either credit pool. A normal outcome, not a system fault.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyRedeemed means the referee has already redeemed a referral
	// code; raised by the storage uniqueness constraint on referee_user_id.
	ErrAlreadyRedeemed = errors.New("referral already redeemed")

	// ErrDuplicateCode means a generated referral code collided with an
	// existing one. Retried internally during generation, never surfaced.
	ErrDuplicateCode = errors.New("referral code already exists")
)

// Reason codes returned to callers via result values
const (
	ReasonPremium             = "premium"
	ReasonNoCredits           = "no_credits"
	ReasonValid               = "valid"
	ReasonInvalidCodeFormat   = "invalid_code_format"
	ReasonCodeNotFound        = "code_not_found"
	ReasonCannotUseOwnCode    = "cannot_use_own_code"
	ReasonAlreadyUsedReferral = "already_used_referral"
)
