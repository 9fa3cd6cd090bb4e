package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditType distinguishes which pool a transaction touched
type CreditType string

const (
	CreditTypeStandard CreditType = "standard"
	CreditTypeReferral CreditType = "referral"
)

// TransactionReason represents why a balance changed
type TransactionReason string

const (
	ReasonExtraction    TransactionReason = "extraction"
	ReasonWeeklyReset   TransactionReason = "weekly_reset"
	ReasonReferralBonus TransactionReason = "referral_bonus"
	ReasonExpired       TransactionReason = "expired"
)

// CreditTransaction is an append-only audit record of a balance mutation.
// Rows are never updated or deleted.
type CreditTransaction struct {
	ID              int64             `db:"id"`
	UserID          uuid.UUID         `db:"user_id"`
	Amount          int               `db:"amount"` // Signed; negative for deductions and expiry
	CreditType      CreditType        `db:"credit_type"`
	Reason          TransactionReason `db:"reason"`
	ExtractionJobID *uuid.UUID        `db:"extraction_job_id"`
	BalanceAfter    int               `db:"balance_after"`
	CreatedAt       time.Time         `db:"created_at"`
}
