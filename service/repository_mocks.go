package service

import (
	"context"
	"sync"
	"time"

	"hotornot/events"
	"hotornot/models"

	"github.com/stretchr/testify/mock"
)

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context) (*models.TokenBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenBalance), args.Error(1)
}

func (m *MockLedgerRepository) SaveBalance(ctx context.Context, balance *models.TokenBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendEvent(ctx context.Context, event *models.TokenEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetRecentEvents(ctx context.Context, limit int) ([]*models.TokenEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TokenEvent), args.Error(1)
}

func (m *MockLedgerRepository) CountEvents(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepository) TrimHistory(ctx context.Context, retain int) (int64, error) {
	args := m.Called(ctx, retain)
	return args.Get(0).(int64), args.Error(1)
}

// MockPostRepository is a mock implementation of PostRepository
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) InitPendingSlots(ctx context.Context, postID int64, slots []int64) error {
	args := m.Called(ctx, postID, slots)
	return args.Error(0)
}

func (m *MockPostRepository) GetPendingSlots(ctx context.Context, postID int64) ([]int64, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockPostRepository) HasPendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	args := m.Called(ctx, postID, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) LockPendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	args := m.Called(ctx, postID, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) RemovePendingSlot(ctx context.Context, postID, slotID int64) (bool, error) {
	args := m.Called(ctx, postID, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) ListAllPendingSlots(ctx context.Context) ([]*models.PendingSlot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingSlot), args.Error(1)
}

// MockBetRegistryRepository is a mock implementation of BetRegistryRepository
type MockBetRegistryRepository struct {
	mock.Mock
}

func (m *MockBetRegistryRepository) TryInsertPostPrincipal(ctx context.Context, postID int64, bettor models.Principal) (bool, error) {
	args := m.Called(ctx, postID, bettor)
	return args.Bool(0), args.Error(1)
}

func (m *MockBetRegistryRepository) GetActiveRoom(ctx context.Context, postID, slotID int64) (int64, bool, error) {
	args := m.Called(ctx, postID, slotID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockBetRegistryRepository) SetActiveRoom(ctx context.Context, postID, slotID, roomID int64) error {
	args := m.Called(ctx, postID, slotID, roomID)
	return args.Error(0)
}

func (m *MockBetRegistryRepository) CreateRoom(ctx context.Context, room *models.RoomDetail) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockBetRegistryRepository) GetRoom(ctx context.Context, postID, slotID, roomID int64) (*models.RoomDetail, error) {
	args := m.Called(ctx, postID, slotID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoomDetail), args.Error(1)
}

func (m *MockBetRegistryRepository) UpdateRoomTotals(ctx context.Context, room *models.RoomDetail) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockBetRegistryRepository) SetRoomOutcome(ctx context.Context, postID, slotID, roomID int64, outcome models.RoomOutcome) error {
	args := m.Called(ctx, postID, slotID, roomID, outcome)
	return args.Error(0)
}

func (m *MockBetRegistryRepository) GetRoomsForSlot(ctx context.Context, postID, slotID int64) ([]*models.RoomDetail, error) {
	args := m.Called(ctx, postID, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoomDetail), args.Error(1)
}

func (m *MockBetRegistryRepository) CreateBet(ctx context.Context, bet *models.BetDetail) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRegistryRepository) GetBetsForRoom(ctx context.Context, postID, slotID, roomID int64) ([]*models.BetDetail, error) {
	args := m.Called(ctx, postID, slotID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BetDetail), args.Error(1)
}

func (m *MockBetRegistryRepository) GetBetForBettor(ctx context.Context, postID int64, bettor models.Principal) (*models.BetDetail, error) {
	args := m.Called(ctx, postID, bettor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetDetail), args.Error(1)
}

func (m *MockBetRegistryRepository) SetBetPayout(ctx context.Context, bet *models.BetDetail, payout int64) (bool, error) {
	args := m.Called(ctx, bet, payout)
	return args.Bool(0), args.Error(1)
}

// MockPlacedBetRepository is a mock implementation of PlacedBetRepository
type MockPlacedBetRepository struct {
	mock.Mock
}

func (m *MockPlacedBetRepository) Get(ctx context.Context, postNodeID string, postID int64) (*models.PlacedBet, error) {
	args := m.Called(ctx, postNodeID, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlacedBet), args.Error(1)
}

func (m *MockPlacedBetRepository) Create(ctx context.Context, bet *models.PlacedBet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockPlacedBetRepository) RecordOutcome(ctx context.Context, postNodeID string, postID int64, outcome models.BetOutcome) (bool, error) {
	args := m.Called(ctx, postNodeID, postID, outcome)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlacedBetRepository) ListAwaiting(ctx context.Context, placedBefore time.Time) ([]*models.PlacedBet, error) {
	args := m.Called(ctx, placedBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PlacedBet), args.Error(1)
}

// MockPostNodeClient is a mock implementation of PostNodeClient
type MockPostNodeClient struct {
	mock.Mock
}

func (m *MockPostNodeClient) PlaceBet(ctx context.Context, postNodeID string, bettor models.Principal, betMakerNodeID string, arg models.PlaceBetArg) (*models.BettingStatus, error) {
	args := m.Called(ctx, postNodeID, bettor, betMakerNodeID, arg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BettingStatus), args.Error(1)
}

func (m *MockPostNodeClient) GetBetOutcome(ctx context.Context, postNodeID string, postID int64, bettor models.Principal) (*models.BetOutcome, error) {
	args := m.Called(ctx, postNodeID, postID, bettor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BetOutcome), args.Error(1)
}

// MockEarningsNotifier is a mock implementation of EarningsNotifier
type MockEarningsNotifier struct {
	mock.Mock
}

func (m *MockEarningsNotifier) NotifyEarnings(ctx context.Context, betMakerNodeID string, notification models.EarningsNotification) error {
	args := m.Called(ctx, betMakerNodeID, notification)
	return args.Error(0)
}

// recordingPublisher collects published events for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return the repositories set via SetRepositories rather than going through
// testify, since services call them many times per transaction.
type MockUnitOfWork struct {
	mock.Mock

	ledgerRepo      LedgerRepository
	postRepo        PostRepository
	betRegistryRepo BetRegistryRepository
	placedBetRepo   PlacedBetRepository
	publisher       *recordingPublisher
}

func (m *MockUnitOfWork) SetRepositories(ledger LedgerRepository, post PostRepository, betRegistry BetRegistryRepository, placedBet PlacedBetRepository) {
	m.ledgerRepo = ledger
	m.postRepo = post
	m.betRegistryRepo = betRegistry
	m.placedBetRepo = placedBet
	m.publisher = &recordingPublisher{}
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

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository {
	return m.ledgerRepo
}

func (m *MockUnitOfWork) PostRepository() PostRepository {
	return m.postRepo
}

func (m *MockUnitOfWork) BetRegistryRepository() BetRegistryRepository {
	return m.betRegistryRepo
}

func (m *MockUnitOfWork) PlacedBetRepository() PlacedBetRepository {
	return m.placedBetRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.publisher
}

// PublishedEvents returns the events published through the unit of work
func (m *MockUnitOfWork) PublishedEvents() []events.Event {
	return m.publisher.Events()
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
