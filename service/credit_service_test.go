package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mise/config"
	"mise/models"
)

var testPolicy = config.Credits{
	FirstWeekCredits:      5,
	StandardWeeklyCredits: 3,
	ReferralBonusCredits:  5,
	ReferralExpiryDays:    30,
	MaxReferralCredits:    50,
}

// fixedNow is a Wednesday; NextMondayUTC(fixedNow) is June 16
var fixedNow = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func newTestCreditService(factory UnitOfWorkFactory, txns CreditTransactionRepository) *creditService {
	svc := NewCreditService(factory, testPolicy, txns).(*creditService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// settledAccount returns an account with no reset due and the first week over
func settledAccount(userID uuid.UUID, standardCredits int) *models.CreditAccount {
	firstWeekEnd := fixedNow.AddDate(0, 0, -30)
	return &models.CreditAccount{
		UserID:          userID,
		StandardCredits: standardCredits,
		CreditsResetAt:  time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		FirstWeekEndsAt: &firstWeekEnd,
	}
}

func TestCreditService_CanExtract_Premium(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	mockTxnRepo := new(MockCreditTransactionRepository)
	service := newTestCreditService(mockFactory, mockTxnRepo)

	check, err := service.CanExtract(ctx, uuid.New(), true)

	assert.NoError(t, err)
	assert.True(t, check.CanExtract)
	assert.Equal(t, ReasonPremium, check.ReasonCode)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestCreditService_CanExtract_WithCredits(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, nil)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 3), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(2, nil)

	check, err := service.CanExtract(ctx, userID, false)

	assert.NoError(t, err)
	assert.True(t, check.CanExtract)
	assert.Equal(t, 5, check.CreditsRemaining)
	assert.Equal(t, "5 credits remaining", check.ReasonCode)

	mockUoW.AssertExpectations(t)
	mockAccountRepo.AssertExpectations(t)
	mockGrantRepo.AssertExpectations(t)
	mockTxnRepo.AssertNotCalled(t, "Record")
}

func TestCreditService_CanExtract_NoCredits(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, nil)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 0), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(0, nil)

	check, err := service.CanExtract(ctx, userID, false)

	assert.NoError(t, err)
	assert.False(t, check.CanExtract)
	assert.Equal(t, ReasonNoCredits, check.ReasonCode)
	assert.Equal(t, 0, check.CreditsRemaining)
}

func TestCreditService_CanExtract_LazyCreatesAccount(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(nil, nil)
	mockAccountRepo.On("Create", ctx, mock.MatchedBy(func(a *models.CreditAccount) bool {
		return a.UserID == userID &&
			a.StandardCredits == testPolicy.FirstWeekCredits &&
			a.CreditsResetAt.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) &&
			a.FirstWeekEndsAt == nil
	})).Return(true, nil)
	mockBus.On("Publish", mock.Anything).Return()
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(0, nil)

	check, err := service.CanExtract(ctx, userID, false)

	assert.NoError(t, err)
	assert.True(t, check.CanExtract)
	assert.Equal(t, testPolicy.FirstWeekCredits, check.CreditsRemaining)

	mockAccountRepo.AssertExpectations(t)
	mockBus.AssertExpectations(t)
}

func TestCreditService_DeductCredit_Premium(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	mockTxnRepo := new(MockCreditTransactionRepository)
	service := newTestCreditService(mockFactory, mockTxnRepo)

	err := service.DeductCredit(ctx, uuid.New(), nil, true)

	assert.NoError(t, err)
	mockFactory.AssertNotCalled(t, "Create")
	mockTxnRepo.AssertNotCalled(t, "Record")
}

func TestCreditService_DeductCredit_Standard(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	jobID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 3), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockAccountRepo.On("DeductStandardCredit", ctx, userID).Return(2, true, nil)
	mockBus.On("Publish", mock.Anything).Return()

	mockTxnRepo.On("Record", ctx, mock.MatchedBy(func(txn *models.CreditTransaction) bool {
		return txn.UserID == userID &&
			txn.Amount == -1 &&
			txn.CreditType == models.CreditTypeStandard &&
			txn.Reason == models.ReasonExtraction &&
			txn.ExtractionJobID != nil && *txn.ExtractionJobID == jobID &&
			txn.BalanceAfter == 2
	})).Return(nil)

	err := service.DeductCredit(ctx, userID, &jobID, false)

	assert.NoError(t, err)
	mockAccountRepo.AssertExpectations(t)
	mockTxnRepo.AssertExpectations(t)
	mockGrantRepo.AssertNotCalled(t, "OldestValid")
}

func TestCreditService_DeductCredit_FallsBackToReferral(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	grantID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	grant := &models.ReferralGrant{
		ID:        grantID,
		UserID:    userID,
		Amount:    5,
		Remaining: 3,
		Source:    models.GrantSourceReferee,
		ExpiresAt: fixedNow.AddDate(0, 0, 10),
	}

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 0), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("OldestValid", ctx, userID, fixedNow).Return(grant, nil)
	mockGrantRepo.On("ConsumeCredit", ctx, grantID, fixedNow).Return(2, true, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(2, nil)
	mockAccountRepo.On("UpdateReferralCache", ctx, userID, 2).Return(nil)
	mockBus.On("Publish", mock.Anything).Return()

	mockTxnRepo.On("Record", ctx, mock.MatchedBy(func(txn *models.CreditTransaction) bool {
		return txn.Amount == -1 &&
			txn.CreditType == models.CreditTypeReferral &&
			txn.Reason == models.ReasonExtraction &&
			txn.BalanceAfter == 2
	})).Return(nil)

	err := service.DeductCredit(ctx, userID, nil, false)

	assert.NoError(t, err)
	mockGrantRepo.AssertExpectations(t)
	mockGrantRepo.AssertNotCalled(t, "Delete")
	mockTxnRepo.AssertExpectations(t)
}

func TestCreditService_DeductCredit_DrainedGrantIsDeleted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	grantID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	grant := &models.ReferralGrant{
		ID:        grantID,
		UserID:    userID,
		Amount:    5,
		Remaining: 1,
		Source:    models.GrantSourceReferrer,
		ExpiresAt: fixedNow.AddDate(0, 0, 10),
	}

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 0), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("OldestValid", ctx, userID, fixedNow).Return(grant, nil)
	mockGrantRepo.On("ConsumeCredit", ctx, grantID, fixedNow).Return(0, true, nil)
	mockGrantRepo.On("Delete", ctx, grantID).Return(nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(0, nil)
	mockAccountRepo.On("UpdateReferralCache", ctx, userID, 0).Return(nil)
	mockBus.On("Publish", mock.Anything).Return()
	mockTxnRepo.On("Record", ctx, mock.Anything).Return(nil)

	err := service.DeductCredit(ctx, userID, nil, false)

	assert.NoError(t, err)
	mockGrantRepo.AssertExpectations(t)
}

func TestCreditService_DeductCredit_Insufficient(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, nil)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 0), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("OldestValid", ctx, userID, fixedNow).Return(nil, nil)

	err := service.DeductCredit(ctx, userID, nil, false)

	assert.ErrorIs(t, err, ErrInsufficientCredits)
	// Lazy side effects still commit even when the deduction fails
	mockUoW.AssertCalled(t, "Commit")
	mockTxnRepo.AssertNotCalled(t, "Record")
}

func TestCreditService_DeductCredit_AppliesWeeklyReset(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Reset boundary passed last Monday; first week long over
	staleResetAt := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	firstWeekEnd := fixedNow.AddDate(0, 0, -60)
	stale := &models.CreditAccount{
		UserID:          userID,
		StandardCredits: 0,
		CreditsResetAt:  staleResetAt,
		FirstWeekEndsAt: &firstWeekEnd,
	}

	nextResetAt := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(stale, nil)
	mockAccountRepo.On("ApplyWeeklyReset", ctx, userID, staleResetAt, testPolicy.StandardWeeklyCredits, nextResetAt, firstWeekEnd).Return(true, nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockAccountRepo.On("DeductStandardCredit", ctx, userID).Return(2, true, nil)
	mockBus.On("Publish", mock.Anything).Return()

	// Both the reset top-up and the extraction land in the audit log
	mockTxnRepo.On("Record", ctx, mock.MatchedBy(func(txn *models.CreditTransaction) bool {
		return txn.Reason == models.ReasonWeeklyReset && txn.Amount == 3 && txn.BalanceAfter == 3
	})).Return(nil)
	mockTxnRepo.On("Record", ctx, mock.MatchedBy(func(txn *models.CreditTransaction) bool {
		return txn.Reason == models.ReasonExtraction && txn.Amount == -1 && txn.BalanceAfter == 2
	})).Return(nil)

	err := service.DeductCredit(ctx, userID, nil, false)

	assert.NoError(t, err)
	mockAccountRepo.AssertExpectations(t)
	mockTxnRepo.AssertExpectations(t)
}

func TestCreditService_GetBalance_Premium(t *testing.T) {
	ctx := context.Background()

	mockFactory := new(MockUnitOfWorkFactory)
	mockTxnRepo := new(MockCreditTransactionRepository)
	service := newTestCreditService(mockFactory, mockTxnRepo)

	summary, err := service.GetBalance(ctx, uuid.New(), true)

	assert.NoError(t, err)
	assert.True(t, summary.IsPremium)
	assert.True(t, summary.CanExtract)
	assert.Equal(t, 0, summary.TotalCredits)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestCreditService_GetBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, nil)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 2), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(0, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(7, nil)

	summary, err := service.GetBalance(ctx, userID, false)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.StandardCredits)
	assert.Equal(t, 7, summary.ReferralCredits)
	assert.Equal(t, 9, summary.TotalCredits)
	assert.False(t, summary.IsFirstWeek)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), summary.NextResetAt)
	assert.True(t, summary.CanExtract)
	assert.False(t, summary.IsPremium)
}

func TestCreditService_GetBalance_ExpiresStaleGrants(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockCreditAccountRepository)
	mockGrantRepo := new(MockReferralGrantRepository)
	mockTxnRepo := new(MockCreditTransactionRepository)
	mockBus := new(MockEventPublisher)

	mockUoW.SetRepositories(mockAccountRepo, mockGrantRepo, nil, nil, nil, nil, mockBus)

	service := newTestCreditService(mockFactory, mockTxnRepo)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByUserID", ctx, userID).Return(settledAccount(userID, 1), nil)
	mockGrantRepo.On("DeleteExpired", ctx, userID, fixedNow).Return(3, nil)
	mockGrantRepo.On("ValidTotal", ctx, userID, fixedNow).Return(2, nil)
	mockAccountRepo.On("UpdateReferralCache", ctx, userID, 2).Return(nil)
	mockBus.On("Publish", mock.Anything).Return()

	mockTxnRepo.On("Record", ctx, mock.MatchedBy(func(txn *models.CreditTransaction) bool {
		return txn.Reason == models.ReasonExpired &&
			txn.Amount == -3 &&
			txn.CreditType == models.CreditTypeReferral &&
			txn.BalanceAfter == 2
	})).Return(nil)

	summary, err := service.GetBalance(ctx, userID, false)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.ReferralCredits)
	assert.Equal(t, 3, summary.TotalCredits)
	mockTxnRepo.AssertExpectations(t)
}
