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

// resolveBalance loads a user's credit account, creating it lazily and
// applying the weekly reset when due. The reset is a check-then-act on
// credits_reset_at, so the write is guarded by a compare-and-swap on the
// observed boundary: of two racing requests only one performs the reset and
// the loser re-reads the advanced row.
//
// Returned audit entries must be recorded by the caller after commit.
func resolveBalance(ctx context.Context, uow UnitOfWork, policy config.Credits, userID uuid.UUID, now time.Time) (*models.CreditAccount, []*models.CreditTransaction, error) {
	accounts := uow.CreditAccountRepository()

	acct, err := accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get credit account: %w", err)
	}

	var pending []*models.CreditTransaction

	if acct == nil {
		fresh := &models.CreditAccount{
			UserID:          userID,
			StandardCredits: policy.FirstWeekCredits,
			CreditsResetAt:  NextMondayUTC(now),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		created, err := accounts.Create(ctx, fresh)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create credit account: %w", err)
		}
		if created {
			acct = fresh
			uow.EventBus().Publish(events.AccountCreatedEvent{
				UserID:          userID,
				StandardCredits: fresh.StandardCredits,
			})
		} else {
			// A concurrent request created it first
			acct, err = accounts.GetByUserID(ctx, userID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to re-read credit account: %w", err)
			}
			if acct == nil {
				return nil, nil, fmt.Errorf("credit account for user %s missing after create race", userID)
			}
		}
	}

	// Every successful reset advances credits_reset_at to a strictly-future
	// boundary, so this loop runs at most twice.
	for acct.ResetDue(now) {
		isFirstWeek := acct.IsFirstWeek(now)
		newCredits := policy.StandardWeeklyCredits
		if isFirstWeek {
			newCredits = policy.FirstWeekCredits
		}
		firstWeekEndsAt := now.AddDate(0, 0, 7)
		if acct.FirstWeekEndsAt != nil {
			firstWeekEndsAt = *acct.FirstWeekEndsAt
		}
		nextResetAt := NextMondayUTC(now)

		won, err := accounts.ApplyWeeklyReset(ctx, userID, acct.CreditsResetAt, newCredits, nextResetAt, firstWeekEndsAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply weekly reset: %w", err)
		}
		if won {
			acct.StandardCredits = newCredits
			acct.CreditsResetAt = nextResetAt
			acct.FirstWeekEndsAt = &firstWeekEndsAt
			acct.UpdatedAt = now

			pending = append(pending, &models.CreditTransaction{
				UserID:       userID,
				Amount:       newCredits,
				CreditType:   models.CreditTypeStandard,
				Reason:       models.ReasonWeeklyReset,
				BalanceAfter: newCredits,
			})
			uow.EventBus().Publish(events.WeeklyResetEvent{
				UserID:      userID,
				NewCredits:  newCredits,
				IsFirstWeek: isFirstWeek,
			})
			break
		}

		// Lost the race; pick up the winner's write
		acct, err = accounts.GetByUserID(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to re-read credit account after reset race: %w", err)
		}
		if acct == nil {
			return nil, nil, fmt.Errorf("credit account for user %s missing after reset race", userID)
		}
	}

	return acct, pending, nil
}
