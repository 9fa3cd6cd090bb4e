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

// expireStaleGrants removes the user's expired grants and refreshes the
// referral cache. Returns the credits removed plus the audit entries the
// caller must record after commit; no entry is produced when nothing expired.
func expireStaleGrants(ctx context.Context, uow UnitOfWork, userID uuid.UUID, now time.Time) (int, []*models.CreditTransaction, error) {
	removed, err := uow.ReferralGrantRepository().DeleteExpired(ctx, userID, now)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to delete expired grants: %w", err)
	}
	if removed == 0 {
		return 0, nil, nil
	}

	total, err := uow.ReferralGrantRepository().ValidTotal(ctx, userID, now)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to sum valid grants: %w", err)
	}
	if err := uow.CreditAccountRepository().UpdateReferralCache(ctx, userID, total); err != nil {
		return 0, nil, fmt.Errorf("failed to update referral cache: %w", err)
	}

	uow.EventBus().Publish(events.GrantsExpiredEvent{
		UserID:         userID,
		CreditsRemoved: removed,
	})

	return removed, []*models.CreditTransaction{{
		UserID:       userID,
		Amount:       -removed,
		CreditType:   models.CreditTypeReferral,
		Reason:       models.ReasonExpired,
		BalanceAfter: total,
	}}, nil
}

// addReferralCredits grants bonus credits to a user, clamped so the live
// referral total never exceeds the cap. Hitting the cap is a quiet no-op,
// not a failure: the returned amount is 0 and no grant is created.
func addReferralCredits(ctx context.Context, uow UnitOfWork, policy config.Credits, userID uuid.UUID, amount int, source models.GrantSource, now time.Time) (int, []*models.CreditTransaction, error) {
	_, pending, err := expireStaleGrants(ctx, uow, userID, now)
	if err != nil {
		return 0, nil, err
	}

	current, err := uow.ReferralGrantRepository().ValidTotal(ctx, userID, now)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to sum valid grants: %w", err)
	}

	toAdd := amount
	if room := policy.MaxReferralCredits - current; toAdd > room {
		toAdd = room
	}
	if toAdd <= 0 {
		return 0, pending, nil
	}

	grant, err := models.NewReferralGrant(userID, toAdd, source, now, policy.ReferralExpiryDays)
	if err != nil {
		return 0, nil, err
	}
	if err := uow.ReferralGrantRepository().Create(ctx, grant); err != nil {
		return 0, nil, fmt.Errorf("failed to create referral grant: %w", err)
	}

	newTotal := current + toAdd
	if err := uow.CreditAccountRepository().UpdateReferralCache(ctx, userID, newTotal); err != nil {
		return 0, nil, fmt.Errorf("failed to update referral cache: %w", err)
	}

	pending = append(pending, &models.CreditTransaction{
		UserID:       userID,
		Amount:       toAdd,
		CreditType:   models.CreditTypeReferral,
		Reason:       models.ReasonReferralBonus,
		BalanceAfter: newTotal,
	})
	return toAdd, pending, nil
}
