package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mise/events"
	"mise/models"
)

// CreditAccountRepository defines the interface for credit account data access
type CreditAccountRepository interface {
	// GetByUserID retrieves an account, or nil if it does not exist
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)

	// Create inserts a new account. Returns false if the account already
	// existed (concurrent lazy creation loses quietly).
	Create(ctx context.Context, account *models.CreditAccount) (bool, error)

	// DeductStandardCredit decrements standard_credits by one as a single
	// conditional update. Returns the new balance and false if the account
	// had no standard credits left.
	DeductStandardCredit(ctx context.Context, userID uuid.UUID) (int, bool, error)

	// ApplyWeeklyReset writes the reset outcome guarded by a compare-and-swap
	// on the observed credits_reset_at. Returns false if a concurrent reset
	// already advanced the boundary.
	ApplyWeeklyReset(ctx context.Context, userID uuid.UUID, observedResetAt time.Time, newCredits int, nextResetAt time.Time, firstWeekEndsAt time.Time) (bool, error)

	// UpdateReferralCache refreshes the denormalized referral credit total
	UpdateReferralCache(ctx context.Context, userID uuid.UUID, total int) error
}

// ReferralGrantRepository defines the interface for referral grant data access
type ReferralGrantRepository interface {
	// Create inserts a new grant
	Create(ctx context.Context, grant *models.ReferralGrant) error

	// ValidTotal sums remaining over grants that have not expired
	ValidTotal(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	// OldestValid returns the unexpired grant with remaining credits that was
	// created first, or nil if none exists
	OldestValid(ctx context.Context, userID uuid.UUID, now time.Time) (*models.ReferralGrant, error)

	// ConsumeCredit decrements a grant's remaining by one as a single
	// conditional update. Returns the new remaining and false if the grant
	// was already drained or expired.
	ConsumeCredit(ctx context.Context, grantID uuid.UUID, now time.Time) (int, bool, error)

	// Delete removes a grant
	Delete(ctx context.Context, grantID uuid.UUID) error

	// DeleteExpired removes all of a user's expired grants and returns the
	// total credits that were still remaining on them
	DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	// ListUserIDsWithExpired returns users holding at least one expired grant
	ListUserIDsWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ReferralCodeRepository defines the interface for referral code data access
type ReferralCodeRepository interface {
	// GetByUserID retrieves a user's code, or nil if none exists
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error)

	// GetByCode retrieves a code row by its normalized code, or nil
	GetByCode(ctx context.Context, code string) (*models.ReferralCode, error)

	// Create inserts a new code. Returns ErrDuplicateCode if the code
	// collides with an existing one.
	Create(ctx context.Context, code *models.ReferralCode) error

	// IncrementUses bumps uses_count by one
	IncrementUses(ctx context.Context, codeID uuid.UUID) error
}

// ReferralRedemptionRepository defines the interface for redemption data access
type ReferralRedemptionRepository interface {
	// Create inserts a redemption. Returns ErrAlreadyRedeemed if the referee
	// has redeemed before; the storage uniqueness constraint is the
	// authoritative guard.
	Create(ctx context.Context, redemption *models.ReferralRedemption) error

	// GetByRefereeID retrieves the redemption a user performed, or nil
	GetByRefereeID(ctx context.Context, refereeUserID uuid.UUID) (*models.ReferralRedemption, error)
}

// CreditTransactionRepository defines the interface for the audit log
type CreditTransactionRepository interface {
	// Record appends an audit entry
	Record(ctx context.Context, txn *models.CreditTransaction) error

	// GetRecentByUser returns a user's most recent transactions
	GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error)
}

// SubscriptionRepository defines the interface for subscription records.
// The billing webhook receiver writes them; the ledger only reads.
type SubscriptionRepository interface {
	// GetByUserID retrieves a user's subscription record, or nil
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubscriptionRecord, error)

	// Upsert inserts or replaces a subscription record
	Upsert(ctx context.Context, record *models.SubscriptionRecord) error
}

// UserProfileRepository is a read-only lookup into the auth service's data
type UserProfileRepository interface {
	// DisplayName returns a user's display name, or "" if unknown
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// ExpirySweepRepository defines the interface for sweep run bookkeeping
type ExpirySweepRepository interface {
	// GetByDate returns the sweep run for a date, or nil
	GetByDate(ctx context.Context, date time.Time) (*models.ExpirySweepRun, error)

	// Create records a sweep run
	Create(ctx context.Context, run *models.ExpirySweepRun) error

	// GetLatest returns the most recent sweep run, or nil
	GetLatest(ctx context.Context) (*models.ExpirySweepRun, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines a transactional scope over the repositories
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	CreditAccountRepository() CreditAccountRepository
	ReferralGrantRepository() ReferralGrantRepository
	ReferralCodeRepository() ReferralCodeRepository
	ReferralRedemptionRepository() ReferralRedemptionRepository
	SubscriptionRepository() SubscriptionRepository
	UserProfileRepository() UserProfileRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// CreditService defines the credit ledger operations consumed by the
// extraction orchestrator and the API layer
type CreditService interface {
	// CanExtract reports whether the user may start an extraction
	CanExtract(ctx context.Context, userID uuid.UUID, isPremium bool) (*models.EligibilityCheck, error)

	// DeductCredit consumes one credit for a committed extraction. Premium
	// users are a no-op. Returns ErrInsufficientCredits when neither the
	// standard allowance nor the referral pool has capacity.
	DeductCredit(ctx context.Context, userID uuid.UUID, extractionJobID *uuid.UUID, isPremium bool) error

	// GetBalance returns the full balance view for the user
	GetBalance(ctx context.Context, userID uuid.UUID, isPremium bool) (*models.BalanceSummary, error)

	// GetRecentTransactions returns the user's audit history
	GetRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error)
}

// ReferralService defines the referral program operations
type ReferralService interface {
	// GetOrCreateCode returns the user's referral code, creating it lazily
	GetOrCreateCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error)

	// ValidateCode checks whether a code can be redeemed by the user
	ValidateCode(ctx context.Context, code string, userID uuid.UUID) (*models.CodeValidation, error)

	// Redeem applies a code to the referee's account and credits both sides
	Redeem(ctx context.Context, code string, refereeUserID uuid.UUID) (*models.RedemptionResult, error)

	// GetStats summarizes the user's referral activity
	GetStats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error)
}

// SubscriptionService defines the premium gate
type SubscriptionService interface {
	// IsPremium reports whether the user holds an active, unexpired subscription
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)

	// UpsertSubscription applies a subscription update from the billing
	// webhook receiver
	UpsertSubscription(ctx context.Context, record *models.SubscriptionRecord) error
}

// SweepService defines the periodic grant expiry sweep
type SweepService interface {
	// RunExpirySweep expires stale grants for every user holding one and
	// records the run
	RunExpirySweep(ctx context.Context) (*models.ExpirySweepRun, error)
}
