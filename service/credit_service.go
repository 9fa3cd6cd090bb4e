package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mise/config"
	"mise/events"
	"mise/models"
)

type creditService struct {
	uowFactory UnitOfWorkFactory
	policy     config.Credits
	txns       CreditTransactionRepository
	audit      *AuditLog
	now        func() time.Time
}

// NewCreditService creates a new credit ledger service. The transaction
// repository must be pool-backed: audit rows are written after commit.
func NewCreditService(uowFactory UnitOfWorkFactory, policy config.Credits, txns CreditTransactionRepository) CreditService {
	return &creditService{
		uowFactory: uowFactory,
		policy:     policy,
		txns:       txns,
		audit:      NewAuditLog(txns),
		now:        time.Now,
	}
}

// CanExtract reports whether the user may start an extraction. Premium users
// always may; everyone else needs capacity in the standard allowance or the
// referral pool.
func (s *creditService) CanExtract(ctx context.Context, userID uuid.UUID, isPremium bool) (*models.EligibilityCheck, error) {
	if isPremium {
		return &models.EligibilityCheck{CanExtract: true, ReasonCode: ReasonPremium}, nil
	}

	now := s.now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	acct, pending, err := resolveBalance(ctx, uow, s.policy, userID, now)
	if err != nil {
		return nil, err
	}

	_, expired, err := expireStaleGrants(ctx, uow, userID, now)
	if err != nil {
		return nil, err
	}
	pending = append(pending, expired...)

	referral, err := uow.ReferralGrantRepository().ValidTotal(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum valid grants: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.audit.Record(ctx, pending...)

	total := acct.StandardCredits + referral
	if total <= 0 {
		return &models.EligibilityCheck{CanExtract: false, ReasonCode: ReasonNoCredits}, nil
	}
	return &models.EligibilityCheck{
		CanExtract:       true,
		ReasonCode:       fmt.Sprintf("%d credits remaining", total),
		CreditsRemaining: total,
	}, nil
}

// DeductCredit consumes one credit for a committed extraction: the standard
// allowance first, then the oldest valid referral grant. Premium users never
// consume credits and are never logged. Returns ErrInsufficientCredits when
// neither pool has capacity; the caller must not have committed the metered
// work yet.
func (s *creditService) DeductCredit(ctx context.Context, userID uuid.UUID, extractionJobID *uuid.UUID, isPremium bool) error {
	if isPremium {
		return nil
	}

	now := s.now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	acct, pending, err := resolveBalance(ctx, uow, s.policy, userID, now)
	if err != nil {
		return err
	}

	_, expired, err := expireStaleGrants(ctx, uow, userID, now)
	if err != nil {
		return err
	}
	pending = append(pending, expired...)

	if acct.StandardCredits > 0 {
		newBalance, ok, err := uow.CreditAccountRepository().DeductStandardCredit(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to deduct standard credit: %w", err)
		}
		if ok {
			pending = append(pending, &models.CreditTransaction{
				UserID:          userID,
				Amount:          -1,
				CreditType:      models.CreditTypeStandard,
				Reason:          models.ReasonExtraction,
				ExtractionJobID: extractionJobID,
				BalanceAfter:    newBalance,
			})
			uow.EventBus().Publish(events.CreditDeductedEvent{
				UserID:          userID,
				CreditType:      models.CreditTypeStandard,
				BalanceAfter:    newBalance,
				ExtractionJobID: extractionJobID,
			})
			if err := uow.Commit(); err != nil {
				return fmt.Errorf("failed to commit transaction: %w", err)
			}
			s.audit.Record(ctx, pending...)
			return nil
		}
		// Lost the race on the last standard credit; fall through to the
		// referral pool
	}

	grants := uow.ReferralGrantRepository()
	for {
		grant, err := grants.OldestValid(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("failed to find oldest valid grant: %w", err)
		}
		if grant == nil {
			break
		}

		remaining, ok, err := grants.ConsumeCredit(ctx, grant.ID, now)
		if err != nil {
			return fmt.Errorf("failed to consume grant credit: %w", err)
		}
		if !ok {
			// Drained or expired under us; try the next-oldest
			continue
		}
		if remaining == 0 {
			if err := grants.Delete(ctx, grant.ID); err != nil {
				return fmt.Errorf("failed to delete drained grant: %w", err)
			}
		}

		total, err := grants.ValidTotal(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("failed to sum valid grants: %w", err)
		}
		if err := uow.CreditAccountRepository().UpdateReferralCache(ctx, userID, total); err != nil {
			return fmt.Errorf("failed to update referral cache: %w", err)
		}

		pending = append(pending, &models.CreditTransaction{
			UserID:          userID,
			Amount:          -1,
			CreditType:      models.CreditTypeReferral,
			Reason:          models.ReasonExtraction,
			ExtractionJobID: extractionJobID,
			BalanceAfter:    total,
		})
		uow.EventBus().Publish(events.CreditDeductedEvent{
			UserID:          userID,
			CreditType:      models.CreditTypeReferral,
			BalanceAfter:    total,
			ExtractionJobID: extractionJobID,
		})
		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.audit.Record(ctx, pending...)
		return nil
	}

	// Neither pool had capacity. The reset and expiry side effects still
	// stand, so commit them before reporting failure.
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.audit.Record(ctx, pending...)
	return ErrInsufficientCredits
}

// GetBalance returns the full balance view for the user. Premium users get
// the all-zero unlimited shape.
func (s *creditService) GetBalance(ctx context.Context, userID uuid.UUID, isPremium bool) (*models.BalanceSummary, error) {
	if isPremium {
		return &models.BalanceSummary{CanExtract: true, IsPremium: true}, nil
	}

	now := s.now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	acct, pending, err := resolveBalance(ctx, uow, s.policy, userID, now)
	if err != nil {
		return nil, err
	}

	_, expired, err := expireStaleGrants(ctx, uow, userID, now)
	if err != nil {
		return nil, err
	}
	pending = append(pending, expired...)

	referral, err := uow.ReferralGrantRepository().ValidTotal(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum valid grants: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.audit.Record(ctx, pending...)

	total := acct.StandardCredits + referral
	return &models.BalanceSummary{
		StandardCredits: acct.StandardCredits,
		ReferralCredits: referral,
		TotalCredits:    total,
		IsFirstWeek:     acct.IsFirstWeek(now),
		NextResetAt:     acct.CreditsResetAt,
		CanExtract:      total > 0,
	}, nil
}

// GetRecentTransactions returns the user's audit history, newest first
func (s *creditService) GetRecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	return s.txns.GetRecentByUser(ctx, userID, limit)
}
