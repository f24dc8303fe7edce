package service

import (
	"context"
	"testing"

	"hotornot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupLedgerMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockLedgerRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockLedgerRepo := new(MockLedgerRepository)

	mockUoW.SetRepositories(mockLedgerRepo, nil, nil, nil)
	mockFactory.On("Create").Return(mockUoW)

	return mockFactory, mockUoW, mockLedgerRepo
}

func TestLedgerService_MintAirdrop_FirstBoot(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{}, nil)
	mockLedgerRepo.On("SaveBalance", ctx, mock.MatchedBy(func(b *models.TokenBalance) bool {
		return b.Balance == 1000 && b.NetAirdrop == 1000
	})).Return(nil)
	mockLedgerRepo.On("AppendEvent", ctx, mock.MatchedBy(func(ev *models.TokenEvent) bool {
		return ev.EventType == models.TokenEventMint &&
			ev.Reason == models.ReasonNewUserSignup &&
			ev.Amount == 1000 &&
			ev.ChangeAmount == 1000 &&
			ev.BalanceAfter == 1000
	})).Return(nil)
	mockLedgerRepo.On("CountEvents", ctx).Return(1, nil)

	err := service.MintAirdrop(ctx)

	assert.NoError(t, err)
	mockLedgerRepo.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
}

func TestLedgerService_MintAirdrop_AlreadyMinted(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{
		Balance:    1000,
		NetAirdrop: 1000,
	}, nil)

	err := service.MintAirdrop(ctx)

	assert.NoError(t, err)
	mockLedgerRepo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestLedgerService_MintAirdrop_ZeroAmountConfigured(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	cfg := testConfig()
	cfg.StartingAirdrop = 0
	service := NewLedgerService(mockFactory, cfg)

	// A zero configured airdrop mints nothing and opens no transaction
	err := service.MintAirdrop(ctx)

	assert.NoError(t, err)
	mockUoW.AssertNotCalled(t, "Begin", mock.Anything)
	mockLedgerRepo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
}

func TestLedgerService_Transfer_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{Balance: 50}, nil)

	err := service.Transfer(ctx, models.Principal("bob"), 100)

	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	mockLedgerRepo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
}

func TestLedgerService_Withdraw_AirdropLocked(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Full balance is airdropped principal with no earnings yet
	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{
		Balance:    1000,
		NetAirdrop: 1000,
	}, nil)

	err := service.Withdraw(ctx, 100)

	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
}

func TestLedgerService_Withdraw_EarningsUnlock(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	// Winnings of 400 unlock that much of the airdropped principal
	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{
		Balance:     1400,
		NetAirdrop:  1000,
		NetEarnings: 400,
	}, nil)
	mockLedgerRepo.On("SaveBalance", ctx, mock.MatchedBy(func(b *models.TokenBalance) bool {
		return b.Balance == 1100
	})).Return(nil)
	mockLedgerRepo.On("AppendEvent", ctx, mock.MatchedBy(func(ev *models.TokenEvent) bool {
		return ev.EventType == models.TokenEventWithdraw && ev.ChangeAmount == -300
	})).Return(nil)
	mockLedgerRepo.On("CountEvents", ctx).Return(10, nil)

	err := service.Withdraw(ctx, 300)

	assert.NoError(t, err)
	mockLedgerRepo.AssertExpectations(t)
}

func TestRecordTokenEvent_TrimsHistoryPastThreshold(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo := setupLedgerMocks()

	service := NewLedgerService(mockFactory, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{Balance: 10}, nil)
	mockLedgerRepo.On("SaveBalance", ctx, mock.Anything).Return(nil)
	mockLedgerRepo.On("AppendEvent", ctx, mock.Anything).Return(nil)
	mockLedgerRepo.On("CountEvents", ctx).Return(1501, nil)
	mockLedgerRepo.On("TrimHistory", ctx, 1000).Return(int64(501), nil)

	err := service.ReceiveTransfer(ctx, models.Principal("bob"), 5)

	assert.NoError(t, err)
	mockLedgerRepo.AssertCalled(t, "TrimHistory", ctx, 1000)
}
