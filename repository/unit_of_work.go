package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mise/database"
	"mise/events"
	"mise/service"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	accountRepo      service.CreditAccountRepository
	grantRepo        service.ReferralGrantRepository
	codeRepo         service.ReferralCodeRepository
	redemptionRepo   service.ReferralRedemptionRepository
	subscriptionRepo service.SubscriptionRepository
	profileRepo      service.UserProfileRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.accountRepo = newCreditAccountRepositoryWithTx(tx)
	u.grantRepo = newReferralGrantRepositoryWithTx(tx)
	u.codeRepo = newReferralCodeRepositoryWithTx(tx)
	u.redemptionRepo = newReferralRedemptionRepositoryWithTx(tx)
	u.subscriptionRepo = newSubscriptionRepositoryWithTx(tx)
	u.profileRepo = newUserProfileRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// CreditAccountRepository returns the credit account repository for this unit of work
func (u *unitOfWork) CreditAccountRepository() service.CreditAccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// ReferralGrantRepository returns the referral grant repository for this unit of work
func (u *unitOfWork) ReferralGrantRepository() service.ReferralGrantRepository {
	if u.grantRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.grantRepo
}

// ReferralCodeRepository returns the referral code repository for this unit of work
func (u *unitOfWork) ReferralCodeRepository() service.ReferralCodeRepository {
	if u.codeRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.codeRepo
}

// ReferralRedemptionRepository returns the redemption repository for this unit of work
func (u *unitOfWork) ReferralRedemptionRepository() service.ReferralRedemptionRepository {
	if u.redemptionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.redemptionRepo
}

// SubscriptionRepository returns the subscription repository for this unit of work
func (u *unitOfWork) SubscriptionRepository() service.SubscriptionRepository {
	if u.subscriptionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.subscriptionRepo
}

// UserProfileRepository returns the user profile repository for this unit of work
func (u *unitOfWork) UserProfileRepository() service.UserProfileRepository {
	if u.profileRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.profileRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not created through the factory")
	}
	return u.transactionalBus
}
