package events

import (
	"context"
	"sync"
	"time"

	"hotornot/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypePostCreated   EventType = "post_created"
	EventTypeBetPlaced     EventType = "bet_placed"
	EventTypeBetReceived   EventType = "bet_received"
	EventTypeSlotResolved  EventType = "slot_resolved"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a token ledger mutation that occurred
type BalanceChangeEvent struct {
	EventType    models.TokenEventType
	Reason       models.TokenEventReason
	OldBalance   int64
	NewBalance   int64
	ChangeAmount int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// PostCreatedEvent represents a new post on this node. The scheduler listens
// for it to arm the post's tabulation timers.
type PostCreatedEvent struct {
	PostID         int64
	CreatedAt      time.Time
	BettingEnabled bool
	PendingSlots   []int64
}

func (e PostCreatedEvent) Type() EventType {
	return EventTypePostCreated
}

// BetPlacedEvent represents an outbound bet committed on the bet-maker side
type BetPlacedEvent struct {
	PostNodeID string
	PostID     int64
	SlotID     int64
	RoomID     int64
	Amount     int64
	Direction  models.BetDirection
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetReceivedEvent represents an inbound bet recorded on a hosted post
type BetReceivedEvent struct {
	PostID         int64
	SlotID         int64
	RoomID         int64
	Bettor         models.Principal
	BetMakerNodeID string
	Amount         int64
	Direction      models.BetDirection
}

func (e BetReceivedEvent) Type() EventType {
	return EventTypeBetReceived
}

// SlotResolvedEvent represents a slot whose rooms have been tabulated
type SlotResolvedEvent struct {
	PostID        int64
	SlotID        int64
	RoomsResolved int
}

func (e SlotResolvedEvent) Type() EventType {
	return EventTypeSlotResolved
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events raised during a unit of work and flushes
// them to the underlying bus only after the database commit succeeds.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit. Events are emitted on a
// background context so they outlive the transaction's context.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
