package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"mise/events"
	"mise/models"
)

// MockCreditAccountRepository is a mock implementation of CreditAccountRepository
type MockCreditAccountRepository struct {
	mock.Mock
}

func (m *MockCreditAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditAccount), args.Error(1)
}

func (m *MockCreditAccountRepository) Create(ctx context.Context, account *models.CreditAccount) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditAccountRepository) DeductStandardCredit(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockCreditAccountRepository) ApplyWeeklyReset(ctx context.Context, userID uuid.UUID, observedResetAt time.Time, newCredits int, nextResetAt time.Time, firstWeekEndsAt time.Time) (bool, error) {
	args := m.Called(ctx, userID, observedResetAt, newCredits, nextResetAt, firstWeekEndsAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditAccountRepository) UpdateReferralCache(ctx context.Context, userID uuid.UUID, total int) error {
	args := m.Called(ctx, userID, total)
	return args.Error(0)
}

// MockReferralGrantRepository is a mock implementation of ReferralGrantRepository
type MockReferralGrantRepository struct {
	mock.Mock
}

func (m *MockReferralGrantRepository) Create(ctx context.Context, grant *models.ReferralGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockReferralGrantRepository) ValidTotal(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockReferralGrantRepository) OldestValid(ctx context.Context, userID uuid.UUID, now time.Time) (*models.ReferralGrant, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralGrant), args.Error(1)
}

func (m *MockReferralGrantRepository) ConsumeCredit(ctx context.Context, grantID uuid.UUID, now time.Time) (int, bool, error) {
	args := m.Called(ctx, grantID, now)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockReferralGrantRepository) Delete(ctx context.Context, grantID uuid.UUID) error {
	args := m.Called(ctx, grantID)
	return args.Error(0)
}

func (m *MockReferralGrantRepository) DeleteExpired(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockReferralGrantRepository) ListUserIDsWithExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockReferralCodeRepository is a mock implementation of ReferralCodeRepository
type MockReferralCodeRepository struct {
	mock.Mock
}

func (m *MockReferralCodeRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ReferralCode, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralCode), args.Error(1)
}

func (m *MockReferralCodeRepository) GetByCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralCode), args.Error(1)
}

func (m *MockReferralCodeRepository) Create(ctx context.Context, code *models.ReferralCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockReferralCodeRepository) IncrementUses(ctx context.Context, codeID uuid.UUID) error {
	args := m.Called(ctx, codeID)
	return args.Error(0)
}

// MockReferralRedemptionRepository is a mock implementation of ReferralRedemptionRepository
type MockReferralRedemptionRepository struct {
	mock.Mock
}

func (m *MockReferralRedemptionRepository) Create(ctx context.Context, redemption *models.ReferralRedemption) error {
	args := m.Called(ctx, redemption)
	return args.Error(0)
}

func (m *MockReferralRedemptionRepository) GetByRefereeID(ctx context.Context, refereeUserID uuid.UUID) (*models.ReferralRedemption, error) {
	args := m.Called(ctx, refereeUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReferralRedemption), args.Error(1)
}

// MockCreditTransactionRepository is a mock implementation of CreditTransactionRepository
type MockCreditTransactionRepository struct {
	mock.Mock
}

func (m *MockCreditTransactionRepository) Record(ctx context.Context, txn *models.CreditTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockCreditTransactionRepository) GetRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditTransaction), args.Error(1)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubscriptionRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, record *models.SubscriptionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockUserProfileRepository is a mock implementation of UserProfileRepository
type MockUserProfileRepository struct {
	mock.Mock
}

func (m *MockUserProfileRepository) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockExpirySweepRepository is a mock implementation of ExpirySweepRepository
type MockExpirySweepRepository struct {
	mock.Mock
}

func (m *MockExpirySweepRepository) GetByDate(ctx context.Context, date time.Time) (*models.ExpirySweepRun, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExpirySweepRun), args.Error(1)
}

func (m *MockExpirySweepRepository) Create(ctx context.Context, run *models.ExpirySweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockExpirySweepRepository) GetLatest(ctx context.Context) (*models.ExpirySweepRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExpirySweepRun), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return the instances wired in through SetRepositories rather than going
// through the expectation machinery, so tests only set expectations on the
// transaction boundary calls.
type MockUnitOfWork struct {
	mock.Mock

	accounts    CreditAccountRepository
	grants      ReferralGrantRepository
	codes       ReferralCodeRepository
	redemptions ReferralRedemptionRepository
	subs        SubscriptionRepository
	profiles    UserProfileRepository
	bus         EventPublisher
}

// SetRepositories wires the repository mocks a test wants this unit of work
// to hand out. Pass nil for repositories the test never touches.
func (m *MockUnitOfWork) SetRepositories(
	accounts CreditAccountRepository,
	grants ReferralGrantRepository,
	codes ReferralCodeRepository,
	redemptions ReferralRedemptionRepository,
	subs SubscriptionRepository,
	profiles UserProfileRepository,
	bus EventPublisher,
) {
	m.accounts = accounts
	m.grants = grants
	m.codes = codes
	m.redemptions = redemptions
	m.subs = subs
	m.profiles = profiles
	m.bus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) CreditAccountRepository() CreditAccountRepository {
	return m.accounts
}

func (m *MockUnitOfWork) ReferralGrantRepository() ReferralGrantRepository {
	return m.grants
}

func (m *MockUnitOfWork) ReferralCodeRepository() ReferralCodeRepository {
	return m.codes
}

func (m *MockUnitOfWork) ReferralRedemptionRepository() ReferralRedemptionRepository {
	return m.redemptions
}

func (m *MockUnitOfWork) SubscriptionRepository() SubscriptionRepository {
	return m.subs
}

func (m *MockUnitOfWork) UserProfileRepository() UserProfileRepository {
	return m.profiles
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.bus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
