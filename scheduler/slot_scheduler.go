package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotornot/config"
	"hotornot/events"
	"hotornot/models"
	"hotornot/service"

	log "github.com/sirupsen/logrus"
)

// SlotScheduler arms a tabulation timer for every pending slot of every
// betting-enabled post. Timers live only in memory; the pending-slot table is
// the durable source of truth, so a restart rebuilds the full timer set from
// it. Duplicate fires are harmless because tabulation itself is idempotent.
type SlotScheduler struct {
	uowFactory service.UnitOfWorkFactory
	settlement service.SettlementService
	cfg        *config.Config
	now        func() time.Time

	mu     sync.Mutex
	armed  map[string]*time.Timer
	stopCh chan struct{}
}

// NewSlotScheduler creates a new slot scheduler
func NewSlotScheduler(uowFactory service.UnitOfWorkFactory, settlement service.SettlementService, cfg *config.Config) *SlotScheduler {
	return &SlotScheduler{
		uowFactory: uowFactory,
		settlement: settlement,
		cfg:        cfg,
		now:        time.Now,
		armed:      make(map[string]*time.Timer),
	}
}

// Subscribe registers the scheduler's event handlers on the bus. New posts get
// their timers armed as soon as the creating transaction commits.
func (s *SlotScheduler) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypePostCreated, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.PostCreatedEvent)
		if !ok || !e.BettingEnabled {
			return
		}
		s.SchedulePost(e.PostID, e.CreatedAt, e.PendingSlots)
	})
}

// Start rebuilds timers from durable state and begins the periodic safety
// sweep. The sweep catches slots whose in-memory timer was lost, for example
// when a tabulation attempt failed. Returns a cleanup function.
func (s *SlotScheduler) Start(ctx context.Context) func() {
	s.stopCh = make(chan struct{})

	if err := s.ReenqueuePendingOutcomes(ctx); err != nil {
		log.WithError(err).Error("Failed to rebuild slot timers from pending state")
	}

	go func() {
		log.Info("Slot scheduler sweep started")
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Slot scheduler shutting down (context cancelled)...")
				return
			case <-s.stopCh:
				log.Info("Slot scheduler shutting down (stop requested)...")
				return
			case <-ticker.C:
				if err := s.ReenqueuePendingOutcomes(ctx); err != nil {
					log.WithError(err).Error("Slot scheduler sweep failed")
				}
			}
		}
	}()

	return func() {
		close(s.stopCh)
		s.mu.Lock()
		for key, timer := range s.armed {
			timer.Stop()
			delete(s.armed, key)
		}
		s.mu.Unlock()
	}
}

// SchedulePost arms a timer for each of the post's pending slots.
func (s *SlotScheduler) SchedulePost(postID int64, createdAt time.Time, slots []int64) {
	for _, slotID := range slots {
		s.armSlot(postID, slotID, createdAt)
	}
}

// ReenqueuePendingOutcomes reads every pending slot from the database and arms
// a timer for each one not already armed. Past-due slots fire immediately.
func (s *SlotScheduler) ReenqueuePendingOutcomes(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pending, err := uow.PostRepository().ListAllPendingSlots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending slots: %w", err)
	}
	uow.Rollback()

	for _, p := range pending {
		s.armSlot(p.PostID, p.SlotID, p.PostCreatedAt)
	}

	if len(pending) > 0 {
		log.WithFields(log.Fields{
			"pendingSlots": len(pending),
		}).Debug("Re-enqueued pending slot timers")
	}
	return nil
}

func (s *SlotScheduler) armSlot(postID, slotID int64, postCreatedAt time.Time) {
	key := slotKey(postID, slotID)

	s.mu.Lock()
	if _, exists := s.armed[key]; exists {
		s.mu.Unlock()
		return
	}

	delay := time.Until(models.SlotEndsAt(postCreatedAt, slotID, s.cfg.SlotDuration))
	if delay < 0 {
		delay = 0
	}
	s.armed[key] = time.AfterFunc(delay, func() {
		s.fire(postID, slotID)
	})
	s.mu.Unlock()
}

// fire runs one tabulation. On failure the armed entry is still cleared so
// the next sweep can re-arm the slot and retry.
func (s *SlotScheduler) fire(postID, slotID int64) {
	defer func() {
		s.mu.Lock()
		delete(s.armed, slotKey(postID, slotID))
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.settlement.TabulateOutcome(ctx, postID, slotID); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"postID": postID,
			"slotID": slotID,
		}).Error("Slot tabulation failed")
		return
	}

	log.WithFields(log.Fields{
		"postID": postID,
		"slotID": slotID,
	}).Debug("Slot tabulated")
}

func slotKey(postID, slotID int64) string {
	return fmt.Sprintf("%d:%d", postID, slotID)
}
