package service

import (
	"context"
	"time"

	"hotornot/events"
	"hotornot/models"
)

// LedgerRepository defines the interface for the token ledger's persisted state
type LedgerRepository interface {
	// GetBalance returns the node owner's running balance counters
	GetBalance(ctx context.Context) (*models.TokenBalance, error)

	// SaveBalance persists the running balance counters
	SaveBalance(ctx context.Context, balance *models.TokenBalance) error

	// AppendEvent appends an event to the history, filling in ID and CreatedAt
	AppendEvent(ctx context.Context, event *models.TokenEvent) error

	// GetRecentEvents returns the most recent events, newest first
	GetRecentEvents(ctx context.Context, limit int) ([]*models.TokenEvent, error)

	// CountEvents returns the number of retained events
	CountEvents(ctx context.Context) (int, error)

	// TrimHistory drops the oldest events so at most retain remain.
	// Returns the number of events removed.
	TrimHistory(ctx context.Context, retain int) (int64, error)
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	// Create creates a new post, assigning its node-local ID
	Create(ctx context.Context, post *models.Post) error

	// GetByID retrieves a post by its ID; nil if absent
	GetByID(ctx context.Context, id int64) (*models.Post, error)

	// Delete removes a post and its pending slots
	Delete(ctx context.Context, id int64) error

	// InitPendingSlots records the full set of slots awaiting tabulation
	InitPendingSlots(ctx context.Context, postID int64, slots []int64) error

	// GetPendingSlots returns the slots of a post still awaiting tabulation
	GetPendingSlots(ctx context.Context, postID int64) ([]int64, error)

	// HasPendingSlot reports whether the slot still awaits tabulation
	HasPendingSlot(ctx context.Context, postID, slotID int64) (bool, error)

	// LockPendingSlot row-locks the slot's pending entry for the duration
	// of the transaction, serializing bet acceptance against tabulation.
	// Returns false if the slot has already been tabulated.
	LockPendingSlot(ctx context.Context, postID, slotID int64) (bool, error)

	// RemovePendingSlot removes a slot from the pending set. Returns false
	// if the slot was already removed, making removal idempotent.
	RemovePendingSlot(ctx context.Context, postID, slotID int64) (bool, error)

	// ListAllPendingSlots returns every pending slot across all posts,
	// paired with the post's creation time
	ListAllPendingSlots(ctx context.Context) ([]*models.PendingSlot, error)
}

// BetRegistryRepository defines the interface for the post-owner side betting
// state: rooms, slots' active rooms, individual bets and the participation
// dedup index.
type BetRegistryRepository interface {
	// TryInsertPostPrincipal inserts the (post, bettor) dedup key. Returns
	// false if the bettor already participated in the post.
	TryInsertPostPrincipal(ctx context.Context, postID int64, bettor models.Principal) (bool, error)

	// GetActiveRoom returns the slot's currently open room ID; found is
	// false when no room has been opened for the slot yet
	GetActiveRoom(ctx context.Context, postID, slotID int64) (roomID int64, found bool, err error)

	// SetActiveRoom records the slot's currently open room
	SetActiveRoom(ctx context.Context, postID, slotID, roomID int64) error

	// CreateRoom creates a fresh room record
	CreateRoom(ctx context.Context, room *models.RoomDetail) error

	// GetRoom retrieves a room; nil if absent
	GetRoom(ctx context.Context, postID, slotID, roomID int64) (*models.RoomDetail, error)

	// UpdateRoomTotals persists a room's pot totals and bet count
	UpdateRoomTotals(ctx context.Context, room *models.RoomDetail) error

	// SetRoomOutcome records a room's settled outcome
	SetRoomOutcome(ctx context.Context, postID, slotID, roomID int64, outcome models.RoomOutcome) error

	// GetRoomsForSlot returns all rooms of a slot in room order
	GetRoomsForSlot(ctx context.Context, postID, slotID int64) ([]*models.RoomDetail, error)

	// CreateBet records an individual bet
	CreateBet(ctx context.Context, bet *models.BetDetail) error

	// GetBetsForRoom returns all bets assigned to a room
	GetBetsForRoom(ctx context.Context, postID, slotID, roomID int64) ([]*models.BetDetail, error)

	// GetBetForBettor returns the bettor's bet on a post; nil if absent
	GetBetForBettor(ctx context.Context, postID int64, bettor models.Principal) (*models.BetDetail, error)

	// SetBetPayout transitions a bet's payout to calculated with the given
	// amount. Returns false if the payout was already calculated.
	SetBetPayout(ctx context.Context, bet *models.BetDetail, payout int64) (bool, error)
}

// PlacedBetRepository defines the interface for the bet-maker's own outbound
// bet ledger
type PlacedBetRepository interface {
	// Get retrieves the owner's bet on a remote post; nil if absent
	Get(ctx context.Context, postNodeID string, postID int64) (*models.PlacedBet, error)

	// Create records a freshly committed outbound bet
	Create(ctx context.Context, bet *models.PlacedBet) error

	// RecordOutcome transitions the bet from awaiting to the given outcome.
	// Returns false if the outcome had already been recorded, making the
	// earnings path idempotent.
	RecordOutcome(ctx context.Context, postNodeID string, postID int64, outcome models.BetOutcome) (bool, error)

	// ListAwaiting returns outbound bets still awaiting a result that were
	// placed before the cutoff
	ListAwaiting(ctx context.Context, placedBefore time.Time) ([]*models.PlacedBet, error)
}

// PostNodeClient is the call surface a node exposes to its peers. The NATS
// implementation lives in the infrastructure package; tests substitute mocks.
type PostNodeClient interface {
	// PlaceBet asks the post-owner node to accept a bet on behalf of the bettor
	PlaceBet(ctx context.Context, postNodeID string, bettor models.Principal, betMakerNodeID string, arg models.PlaceBetArg) (*models.BettingStatus, error)

	// GetBetOutcome asks the post-owner node for the settled outcome of the
	// bettor's bet on a post. Returns an awaiting outcome if the slot has
	// not been tabulated yet.
	GetBetOutcome(ctx context.Context, postNodeID string, postID int64, bettor models.Principal) (*models.BetOutcome, error)
}

// EarningsNotifier delivers settlement results to bet-maker nodes.
// Fire-and-forget: delivery failures are logged, not retried; the bet-maker's
// reconciliation sweep covers lost notifications.
type EarningsNotifier interface {
	NotifyEarnings(ctx context.Context, betMakerNodeID string, notification models.EarningsNotification) error
}

// LedgerService defines the interface for token ledger operations
type LedgerService interface {
	// GetBalance returns the owner's current balance counters
	GetBalance(ctx context.Context) (*models.TokenBalance, error)

	// GetRecentEvents returns the retained event history, newest first
	GetRecentEvents(ctx context.Context, limit int) ([]*models.TokenEvent, error)

	// MintAirdrop credits the signup airdrop exactly once
	MintAirdrop(ctx context.Context) error

	// Transfer debits the owner's balance in favour of another principal
	Transfer(ctx context.Context, to models.Principal, amount int64) error

	// ReceiveTransfer credits an inbound transfer
	ReceiveTransfer(ctx context.Context, from models.Principal, amount int64) error

	// Withdraw debits the withdrawable part of the balance
	Withdraw(ctx context.Context, amount int64) error
}

// PostService defines the interface for post lifecycle operations
type PostService interface {
	// AddPost creates a post. For betting-enabled posts the full pending
	// slot set is initialized and tabulation timers are armed.
	AddPost(ctx context.Context, creator models.Principal, description, videoUID string, bettingEnabled bool) (*models.Post, error)

	// GetPost retrieves a post by ID
	GetPost(ctx context.Context, postID int64) (*models.Post, error)

	// DeletePost removes a post; pending tabulations then skip gracefully
	DeletePost(ctx context.Context, postID int64) error
}

// BettingService defines the bet-maker side of the settlement protocol
type BettingService interface {
	// PlaceBetOnPost reserves the stake locally, places the bet on the
	// post-owner node and reconciles the result (commit or refund).
	PlaceBetOnPost(ctx context.Context, bettor models.Principal, arg models.PlaceBetArg) (*models.BettingStatus, error)

	// ReceiveEarnings applies a settlement notification to the owner's
	// ledger. Idempotent: outcomes already recorded are not applied again.
	ReceiveEarnings(ctx context.Context, notification models.EarningsNotification) error

	// ResolvePendingBets polls post-owner nodes for outcomes of bets still
	// awaiting a result past the grace period. Returns the number resolved.
	ResolvePendingBets(ctx context.Context) (int, error)
}

// SettlementService defines the post-owner side of the settlement protocol
type SettlementService interface {
	// ReceiveBet validates, assigns a room and records a bet arriving from
	// a bet-maker node
	ReceiveBet(ctx context.Context, bettor models.Principal, betMakerNodeID string, arg models.PlaceBetArg) (*models.BettingStatus, error)

	// TabulateOutcome settles every room of a post's slot, pays the
	// creator commission and notifies bet-maker nodes. Idempotent.
	TabulateOutcome(ctx context.Context, postID, slotID int64) error

	// GetBetOutcome returns the settled outcome of a bettor's bet
	GetBetOutcome(ctx context.Context, postID int64, bettor models.Principal) (*models.BetOutcome, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	LedgerRepository() LedgerRepository
	PostRepository() PostRepository
	BetRegistryRepository() BetRegistryRepository
	PlacedBetRepository() PlacedBetRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
