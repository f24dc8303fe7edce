package service

import (
	"context"
	"testing"
	"time"

	"hotornot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupSettlementMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockLedgerRepository, *MockPostRepository, *MockBetRegistryRepository, *MockEarningsNotifier) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockLedgerRepo := new(MockLedgerRepository)
	mockPostRepo := new(MockPostRepository)
	mockBetRegistryRepo := new(MockBetRegistryRepository)
	mockNotifier := new(MockEarningsNotifier)

	mockUoW.SetRepositories(mockLedgerRepo, mockPostRepo, mockBetRegistryRepo, nil)
	mockFactory.On("Create").Return(mockUoW)

	return mockFactory, mockUoW, mockLedgerRepo, mockPostRepo, mockBetRegistryRepo, mockNotifier
}

func TestSettlementService_ReceiveBet_FirstBetOpensRoom(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	createdAt := time.Now().Add(-30 * time.Minute)
	post := &models.Post{ID: 7, CreatorPrincipal: "bob", BettingEnabled: true, CreatedAt: createdAt}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 100, Direction: models.BetDirectionHot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("LockPendingSlot", ctx, int64(7), int64(1)).Return(true, nil)
	mockBetRegistryRepo.On("TryInsertPostPrincipal", ctx, int64(7), models.Principal("alice")).Return(true, nil)
	mockBetRegistryRepo.On("GetActiveRoom", ctx, int64(7), int64(1)).Return(int64(0), false, nil)
	mockBetRegistryRepo.On("CreateRoom", ctx, mock.MatchedBy(func(r *models.RoomDetail) bool {
		return r.PostID == 7 && r.SlotID == 1 && r.RoomID == 1 && r.Outcome == models.RoomOutcomeOngoing
	})).Return(nil)
	mockBetRegistryRepo.On("SetActiveRoom", ctx, int64(7), int64(1), int64(1)).Return(nil)
	mockBetRegistryRepo.On("CreateBet", ctx, mock.MatchedBy(func(b *models.BetDetail) bool {
		return b.PostID == 7 &&
			b.SlotID == 1 &&
			b.RoomID == 1 &&
			b.Bettor == "alice" &&
			b.BetMakerNodeID == "node-a" &&
			b.Amount == 100 &&
			b.Direction == models.BetDirectionHot
	})).Return(nil)
	mockBetRegistryRepo.On("UpdateRoomTotals", ctx, mock.MatchedBy(func(r *models.RoomDetail) bool {
		return r.TotalPot == 100 && r.HotAmount == 100 && r.NotAmount == 0 && r.BetCount == 1
	})).Return(nil)

	status, err := svc.ReceiveBet(ctx, models.Principal("alice"), "node-a", arg)

	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, int64(1), status.OngoingSlot)
	assert.Equal(t, int64(1), status.OngoingRoom)
	assert.True(t, status.HasParticipated)
	mockBetRegistryRepo.AssertExpectations(t)
}

func TestSettlementService_ReceiveBet_FullRoomOpensNext(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	cfg := testConfig()
	cfg.RoomCapacity = 2
	svc := NewSettlementService(mockFactory, mockNotifier, cfg)

	createdAt := time.Now().Add(-90 * time.Minute)
	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: createdAt}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 40, Direction: models.BetDirectionNot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("LockPendingSlot", ctx, int64(7), int64(2)).Return(true, nil)
	mockBetRegistryRepo.On("TryInsertPostPrincipal", ctx, int64(7), models.Principal("carol")).Return(true, nil)

	// Slot 2 is open; room 1 is at capacity
	mockBetRegistryRepo.On("GetActiveRoom", ctx, int64(7), int64(2)).Return(int64(1), true, nil)
	mockBetRegistryRepo.On("GetRoom", ctx, int64(7), int64(2), int64(1)).Return(&models.RoomDetail{
		PostID: 7, SlotID: 2, RoomID: 1, BetCount: 2, Outcome: models.RoomOutcomeOngoing,
	}, nil)
	mockBetRegistryRepo.On("CreateRoom", ctx, mock.MatchedBy(func(r *models.RoomDetail) bool {
		return r.RoomID == 2
	})).Return(nil)
	mockBetRegistryRepo.On("SetActiveRoom", ctx, int64(7), int64(2), int64(2)).Return(nil)
	mockBetRegistryRepo.On("CreateBet", ctx, mock.Anything).Return(nil)
	mockBetRegistryRepo.On("UpdateRoomTotals", ctx, mock.MatchedBy(func(r *models.RoomDetail) bool {
		return r.RoomID == 2 && r.NotAmount == 40 && r.BetCount == 1
	})).Return(nil)

	status, err := svc.ReceiveBet(ctx, models.Principal("carol"), "node-a", arg)

	require.NoError(t, err)
	assert.Equal(t, int64(2), status.OngoingSlot)
	assert.Equal(t, int64(2), status.OngoingRoom)
	mockBetRegistryRepo.AssertExpectations(t)
}

func TestSettlementService_ReceiveBet_DuplicateParticipation(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: time.Now().Add(-time.Minute)}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 100, Direction: models.BetDirectionHot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("LockPendingSlot", ctx, int64(7), int64(1)).Return(true, nil)
	mockBetRegistryRepo.On("TryInsertPostPrincipal", ctx, int64(7), models.Principal("alice")).Return(false, nil)

	_, err := svc.ReceiveBet(ctx, models.Principal("alice"), "node-a", arg)

	assert.ErrorIs(t, err, models.ErrAlreadyParticipated)
	mockBetRegistryRepo.AssertNotCalled(t, "CreateBet", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestSettlementService_ReceiveBet_SlotAlreadyTabulated(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	// The wall clock still reads slot 1 open, but tabulation has already
	// removed the slot's pending entry
	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: time.Now().Add(-30 * time.Minute)}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 100, Direction: models.BetDirectionHot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("LockPendingSlot", ctx, int64(7), int64(1)).Return(false, nil)

	_, err := svc.ReceiveBet(ctx, models.Principal("alice"), "node-a", arg)

	assert.ErrorIs(t, err, models.ErrBettingClosed)
	mockBetRegistryRepo.AssertNotCalled(t, "TryInsertPostPrincipal", mock.Anything, mock.Anything, mock.Anything)
	mockBetRegistryRepo.AssertNotCalled(t, "CreateBet", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestSettlementService_ReceiveBet_HorizonElapsed(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, _, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	// 48 one-hour slots have long passed
	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: time.Now().Add(-49 * time.Hour)}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 100, Direction: models.BetDirectionHot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)

	_, err := svc.ReceiveBet(ctx, models.Principal("alice"), "node-a", arg)

	assert.ErrorIs(t, err, models.ErrBettingClosed)
}

func TestSettlementService_ReceiveBet_BettingDisabledPost(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, _, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	post := &models.Post{ID: 7, BettingEnabled: false, CreatedAt: time.Now()}
	arg := models.PlaceBetArg{PostNodeID: "node-b", PostID: 7, Amount: 100, Direction: models.BetDirectionHot}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)

	_, err := svc.ReceiveBet(ctx, models.Principal("alice"), "node-a", arg)

	assert.ErrorIs(t, err, models.ErrBettingClosed)
}

func TestSettlementService_TabulateOutcome_HotWins(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	post := &models.Post{ID: 7, CreatorPrincipal: "bob", BettingEnabled: true, CreatedAt: time.Now().Add(-2 * time.Hour)}

	room := &models.RoomDetail{
		PostID: 7, SlotID: 1, RoomID: 1,
		TotalPot: 300, HotAmount: 200, NotAmount: 100, BetCount: 3,
		Outcome: models.RoomOutcomeOngoing,
	}
	bets := []*models.BetDetail{
		{PostID: 7, SlotID: 1, RoomID: 1, Bettor: "alice", BetMakerNodeID: "node-a", Amount: 150, Direction: models.BetDirectionHot},
		{PostID: 7, SlotID: 1, RoomID: 1, Bettor: "carol", BetMakerNodeID: "node-c", Amount: 50, Direction: models.BetDirectionHot},
		{PostID: 7, SlotID: 1, RoomID: 1, Bettor: "dave", BetMakerNodeID: "node-d", Amount: 100, Direction: models.BetDirectionNot},
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("RemovePendingSlot", ctx, int64(7), int64(1)).Return(true, nil)

	mockBetRegistryRepo.On("GetRoomsForSlot", ctx, int64(7), int64(1)).Return([]*models.RoomDetail{room}, nil)
	mockBetRegistryRepo.On("SetRoomOutcome", ctx, int64(7), int64(1), int64(1), models.RoomOutcomeHotWon).Return(nil)
	mockBetRegistryRepo.On("GetBetsForRoom", ctx, int64(7), int64(1), int64(1)).Return(bets, nil)

	// Winners get double the stake less 10% commission, losers get nothing
	mockBetRegistryRepo.On("SetBetPayout", ctx, bets[0], int64(270)).Return(true, nil)
	mockBetRegistryRepo.On("SetBetPayout", ctx, bets[1], int64(90)).Return(true, nil)
	mockBetRegistryRepo.On("SetBetPayout", ctx, bets[2], int64(0)).Return(true, nil)

	// Creator commission: 10% of the 300 pot
	mockLedgerRepo.On("GetBalance", ctx).Return(&models.TokenBalance{Balance: 1000, NetAirdrop: 1000}, nil)
	mockLedgerRepo.On("SaveBalance", ctx, mock.MatchedBy(func(b *models.TokenBalance) bool {
		return b.Balance == 1030 && b.NetEarnings == 30
	})).Return(nil)
	mockLedgerRepo.On("AppendEvent", ctx, mock.MatchedBy(func(ev *models.TokenEvent) bool {
		return ev.EventType == models.TokenEventHotOrNotPayout &&
			ev.Reason == models.ReasonCreatorCommission &&
			ev.Amount == 30
	})).Return(nil)
	mockLedgerRepo.On("CountEvents", ctx).Return(5, nil)

	mockNotifier.On("NotifyEarnings", ctx, "node-a", mock.MatchedBy(func(n models.EarningsNotification) bool {
		return n.PostID == 7 && n.Outcome.Kind == models.BetOutcomeWon && n.Outcome.Amount == 270
	})).Return(nil)
	mockNotifier.On("NotifyEarnings", ctx, "node-c", mock.MatchedBy(func(n models.EarningsNotification) bool {
		return n.Outcome.Kind == models.BetOutcomeWon && n.Outcome.Amount == 90
	})).Return(nil)
	mockNotifier.On("NotifyEarnings", ctx, "node-d", mock.MatchedBy(func(n models.EarningsNotification) bool {
		return n.Outcome.Kind == models.BetOutcomeLost && n.Outcome.Amount == 0
	})).Return(nil)

	err := svc.TabulateOutcome(ctx, 7, 1)

	require.NoError(t, err)
	mockBetRegistryRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
}

func TestSettlementService_TabulateOutcome_DrawRefundsStakes(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockLedgerRepo, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: time.Now().Add(-2 * time.Hour)}
	room := &models.RoomDetail{
		PostID: 7, SlotID: 1, RoomID: 1,
		TotalPot: 200, HotAmount: 100, NotAmount: 100, BetCount: 2,
		Outcome: models.RoomOutcomeOngoing,
	}
	bets := []*models.BetDetail{
		{PostID: 7, SlotID: 1, RoomID: 1, Bettor: "alice", BetMakerNodeID: "node-a", Amount: 100, Direction: models.BetDirectionHot},
		{PostID: 7, SlotID: 1, RoomID: 1, Bettor: "dave", BetMakerNodeID: "node-d", Amount: 100, Direction: models.BetDirectionNot},
	}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("RemovePendingSlot", ctx, int64(7), int64(1)).Return(true, nil)

	mockBetRegistryRepo.On("GetRoomsForSlot", ctx, int64(7), int64(1)).Return([]*models.RoomDetail{room}, nil)
	mockBetRegistryRepo.On("SetRoomOutcome", ctx, int64(7), int64(1), int64(1), models.RoomOutcomeDraw).Return(nil)
	mockBetRegistryRepo.On("GetBetsForRoom", ctx, int64(7), int64(1), int64(1)).Return(bets, nil)

	// Both stakes come back in full
	mockBetRegistryRepo.On("SetBetPayout", ctx, bets[0], int64(100)).Return(true, nil)
	mockBetRegistryRepo.On("SetBetPayout", ctx, bets[1], int64(100)).Return(true, nil)

	mockNotifier.On("NotifyEarnings", ctx, "node-a", mock.MatchedBy(func(n models.EarningsNotification) bool {
		return n.Outcome.Kind == models.BetOutcomeDraw && n.Outcome.Amount == 100
	})).Return(nil)
	mockNotifier.On("NotifyEarnings", ctx, "node-d", mock.MatchedBy(func(n models.EarningsNotification) bool {
		return n.Outcome.Kind == models.BetOutcomeDraw && n.Outcome.Amount == 100
	})).Return(nil)

	err := svc.TabulateOutcome(ctx, 7, 1)

	require.NoError(t, err)
	// Drawn rooms pay no creator commission
	mockLedgerRepo.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
	mockNotifier.AssertExpectations(t)
}

func TestSettlementService_TabulateOutcome_AlreadyTabulated(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	post := &models.Post{ID: 7, BettingEnabled: true, CreatedAt: time.Now().Add(-2 * time.Hour)}

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(post, nil)
	mockPostRepo.On("RemovePendingSlot", ctx, int64(7), int64(1)).Return(false, nil)

	err := svc.TabulateOutcome(ctx, 7, 1)

	assert.NoError(t, err)
	mockBetRegistryRepo.AssertNotCalled(t, "GetRoomsForSlot", mock.Anything, mock.Anything, mock.Anything)
	mockNotifier.AssertNotCalled(t, "NotifyEarnings", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_TabulateOutcome_DeletedPost(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockPostRepo, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockPostRepo.On("GetByID", ctx, int64(7)).Return(nil, nil)

	err := svc.TabulateOutcome(ctx, 7, 1)

	assert.NoError(t, err)
	mockBetRegistryRepo.AssertNotCalled(t, "GetRoomsForSlot", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_GetBetOutcome(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, mockBetRegistryRepo, mockNotifier := setupSettlementMocks()

	svc := NewSettlementService(mockFactory, mockNotifier, testConfig())

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	t.Run("awaiting before tabulation", func(t *testing.T) {
		mockBetRegistryRepo.On("GetBetForBettor", ctx, int64(7), models.Principal("alice")).Return(&models.BetDetail{
			PostID: 7, SlotID: 1, RoomID: 1, Bettor: "alice",
			Amount: 100, Direction: models.BetDirectionHot,
			PayoutStatus: models.PayoutNotCalculated,
		}, nil).Once()

		outcome, err := svc.GetBetOutcome(ctx, 7, models.Principal("alice"))

		require.NoError(t, err)
		assert.Equal(t, models.BetOutcomeAwaiting, outcome.Kind)
	})

	t.Run("won after tabulation", func(t *testing.T) {
		mockBetRegistryRepo.On("GetBetForBettor", ctx, int64(7), models.Principal("alice")).Return(&models.BetDetail{
			PostID: 7, SlotID: 1, RoomID: 1, Bettor: "alice",
			Amount: 100, Direction: models.BetDirectionHot,
			PayoutStatus: models.PayoutCalculated, PayoutAmount: 180,
		}, nil).Once()
		mockBetRegistryRepo.On("GetRoom", ctx, int64(7), int64(1), int64(1)).Return(&models.RoomDetail{
			PostID: 7, SlotID: 1, RoomID: 1, Outcome: models.RoomOutcomeHotWon,
		}, nil).Once()

		outcome, err := svc.GetBetOutcome(ctx, 7, models.Principal("alice"))

		require.NoError(t, err)
		assert.Equal(t, models.BetOutcomeWon, outcome.Kind)
		assert.Equal(t, int64(180), outcome.Amount)
	})

	t.Run("unknown bet", func(t *testing.T) {
		mockBetRegistryRepo.On("GetBetForBettor", ctx, int64(9), models.Principal("alice")).Return(nil, nil).Once()

		_, err := svc.GetBetOutcome(ctx, 9, models.Principal("alice"))

		assert.ErrorIs(t, err, models.ErrPostNotFound)
	})
}
