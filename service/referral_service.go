package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mise/config"
	"mise/events"
	"mise/models"
)

// codeAlphabet excludes lookalike characters (I, O, 0, 1)
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// maxCodeAttempts bounds regeneration on uniqueness collisions
const maxCodeAttempts = 5

type referralService struct {
	uowFactory UnitOfWorkFactory
	policy     config.Credits
	audit      *AuditLog
	now        func() time.Time
}

// NewReferralService creates a new referral program service
func NewReferralService(uowFactory UnitOfWorkFactory, policy config.Credits, txns CreditTransactionRepository) ReferralService {
	return &referralService{
		uowFactory: uowFactory,
		policy:     policy,
		audit:      NewAuditLog(txns),
		now:        time.Now,
	}
}

// GetOrCreateCode returns the user's referral code, generating one lazily.
// Collisions on the global code uniqueness are retried with a fresh code;
// a concurrent creation by the same user resolves to the winner's code.
func (s *referralService) GetOrCreateCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.tryCreateCode(ctx, userID)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to generate a unique referral code after %d attempts", maxCodeAttempts)
}

// tryCreateCode runs one lookup-or-insert attempt in its own transaction.
// A unique violation aborts the whole Postgres transaction, so each retry
// needs a fresh one.
func (s *referralService) tryCreateCode(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.ReferralCodeRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if existing != nil {
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return existing, nil
	}

	code := &models.ReferralCode{
		ID:     uuid.New(),
		UserID: userID,
		Code:   randomCode(),
	}
	if err := uow.ReferralCodeRepository().Create(ctx, code); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return code, nil
}

// randomCode draws a fixed-length code from the alphabet using crypto/rand
func randomCode() string {
	buf := make([]byte, models.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// ValidateCode checks whether a code can be redeemed by the user
func (s *referralService) ValidateCode(ctx context.Context, code string, userID uuid.UUID) (*models.CodeValidation, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	validation, _, err := validateCode(ctx, uow, code, userID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return validation, nil
}

// validateCode runs the anti-abuse checks inside an existing unit of work.
// On success it also returns the code row for the caller's redemption insert.
func validateCode(ctx context.Context, uow UnitOfWork, code string, userID uuid.UUID) (*models.CodeValidation, *models.ReferralCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != models.CodeLength {
		return &models.CodeValidation{ReasonCode: ReasonInvalidCodeFormat}, nil, nil
	}

	row, err := uow.ReferralCodeRepository().GetByCode(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if row == nil {
		return &models.CodeValidation{ReasonCode: ReasonCodeNotFound}, nil, nil
	}
	if row.UserID == userID {
		return &models.CodeValidation{ReasonCode: ReasonCannotUseOwnCode}, nil, nil
	}

	prior, err := uow.ReferralRedemptionRepository().GetByRefereeID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up prior redemption: %w", err)
	}
	if prior != nil {
		return &models.CodeValidation{ReasonCode: ReasonAlreadyUsedReferral}, nil, nil
	}

	name, err := uow.UserProfileRepository().DisplayName(ctx, row.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up referrer name: %w", err)
	}

	return &models.CodeValidation{
		IsValid:      true,
		ReasonCode:   ReasonValid,
		ReferrerName: name,
	}, row, nil
}

// Redeem applies a referral code to the referee's account. The redemption
// insert is the serialization point: the uniqueness constraint on the
// referee is the authoritative once-ever guard, and client-side validation
// is re-run as defense against stale state. Bonus credits are then granted
// to each side independently; a side already at the cap clamps to zero but
// the redemption is still reported as successful.
func (s *referralService) Redeem(ctx context.Context, code string, refereeUserID uuid.UUID) (*models.RedemptionResult, error) {
	now := s.now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	validation, row, err := validateCode(ctx, uow, code, refereeUserID)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return &models.RedemptionResult{Message: rejectionMessage(validation.ReasonCode)}, nil
	}

	redemption := &models.ReferralRedemption{
		ID:             uuid.New(),
		ReferrerUserID: row.UserID,
		RefereeUserID:  refereeUserID,
		ReferralCodeID: row.ID,
		CreditsAwarded: s.policy.ReferralBonusCredits,
		CreatedAt:      now,
	}
	if err := uow.ReferralRedemptionRepository().Create(ctx, redemption); err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			// Lost a double-submission race after validation passed
			return &models.RedemptionResult{Message: rejectionMessage(ReasonAlreadyUsedReferral)}, nil
		}
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}
	if err := uow.ReferralCodeRepository().IncrementUses(ctx, row.ID); err != nil {
		return nil, fmt.Errorf("failed to increment code uses: %w", err)
	}

	uow.EventBus().Publish(events.ReferralRedeemedEvent{
		ReferrerUserID: row.UserID,
		RefereeUserID:  refereeUserID,
		Code:           row.Code,
		CreditsAwarded: s.policy.ReferralBonusCredits,
	})
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The redemption is durable from here on. Each side's grant is applied
	// in its own transaction; a failure leaves the redemption recorded with
	// a partially-applied bonus, which the grant's cap-aware retry can heal.
	awarded := s.applyBonus(ctx, refereeUserID, models.GrantSourceReferee, now)
	s.applyBonus(ctx, row.UserID, models.GrantSourceReferrer, now)

	return &models.RedemptionResult{
		Success:        true,
		Message:        fmt.Sprintf("Referral code applied! You earned %d bonus credits.", awarded),
		CreditsAwarded: awarded,
	}, nil
}

// applyBonus grants one side's redemption bonus in its own transaction.
// Errors are logged, not surfaced: the redemption itself already stands.
func (s *referralService) applyBonus(ctx context.Context, userID uuid.UUID, source models.GrantSource, now time.Time) int {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithField("userID", userID).WithError(err).Error("Failed to begin bonus grant transaction")
		return 0
	}
	defer uow.Rollback()

	added, pending, err := addReferralCredits(ctx, uow, s.policy, userID, s.policy.ReferralBonusCredits, source, now)
	if err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"source": source,
		}).WithError(err).Error("Failed to grant referral bonus")
		return 0
	}
	if err := uow.Commit(); err != nil {
		log.WithField("userID", userID).WithError(err).Error("Failed to commit bonus grant")
		return 0
	}
	s.audit.Record(ctx, pending...)
	return added
}

// GetStats summarizes the user's referral activity. TotalCreditsEarned is a
// nominal lifetime figure (uses x bonus), not reduced by expiry.
func (s *referralService) GetStats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	code, err := s.GetOrCreateCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pending, err := uow.ReferralGrantRepository().ValidTotal(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to sum valid grants: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.ReferralStats{
		Code:                   code.Code,
		UsesCount:              code.UsesCount,
		TotalCreditsEarned:     code.UsesCount * s.policy.ReferralBonusCredits,
		PendingReferralCredits: pending,
	}, nil
}

// rejectionMessage maps a validation reason code to a user-facing message
func rejectionMessage(reasonCode string) string {
	switch reasonCode {
	case ReasonInvalidCodeFormat:
		return "Referral codes are 8 characters."
	case ReasonCodeNotFound:
		return "That referral code doesn't exist."
	case ReasonCannotUseOwnCode:
		return "You can't use your own referral code."
	case ReasonAlreadyUsedReferral:
		return "You've already redeemed a referral code."
	default:
		return "That referral code can't be used."
	}
}
