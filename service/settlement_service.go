package service

import (
	"context"
	"fmt"
	"time"

	"hotornot/config"
	"hotornot/events"
	"hotornot/models"

	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	uowFactory UnitOfWorkFactory
	notifier   EarningsNotifier
	cfg        *config.Config
	now        func() time.Time
}

// NewSettlementService creates a new post-owner side settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, notifier EarningsNotifier, cfg *config.Config) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ReceiveBet validates, assigns a room and records a bet arriving from a
// bet-maker node. The bet-maker node is trusted to speak for the bettor it
// names; see the hardening note in DESIGN.md.
func (s *settlementService) ReceiveBet(ctx context.Context, bettor models.Principal, betMakerNodeID string, arg models.PlaceBetArg) (*models.BettingStatus, error) {
	if bettor.IsAnonymous() {
		return nil, models.ErrUserNotLoggedIn
	}
	if betMakerNodeID == "" {
		return nil, fmt.Errorf("bet maker node id must be set")
	}
	if arg.Amount <= 0 {
		return nil, fmt.Errorf("bet amount must be positive")
	}
	if !arg.Direction.IsValid() {
		return nil, fmt.Errorf("invalid bet direction %q", arg.Direction)
	}

	now := s.now()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	post, err := uow.PostRepository().GetByID(ctx, arg.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, models.ErrPostNotFound
	}
	if !post.BettingEnabled {
		return nil, models.ErrBettingClosed
	}

	slotID, open := models.CurrentSlot(post.CreatedAt, now, s.cfg.SlotDuration)
	if !open {
		return nil, models.ErrBettingClosed
	}

	// Lock the slot's pending entry so tabulation cannot run between the
	// clock check above and our commit. Tabulation deletes the entry first;
	// finding it gone means the slot has already settled.
	locked, err := uow.PostRepository().LockPendingSlot(ctx, arg.PostID, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending slot: %w", err)
	}
	if !locked {
		return nil, models.ErrBettingClosed
	}

	inserted, err := uow.BetRegistryRepository().TryInsertPostPrincipal(ctx, arg.PostID, bettor)
	if err != nil {
		return nil, fmt.Errorf("failed to check participation: %w", err)
	}
	if !inserted {
		return nil, models.ErrAlreadyParticipated
	}

	room, err := s.assignRoom(ctx, uow, arg.PostID, slotID)
	if err != nil {
		return nil, err
	}

	bet := &models.BetDetail{
		PostID:         arg.PostID,
		SlotID:         slotID,
		RoomID:         room.RoomID,
		Bettor:         bettor,
		BetMakerNodeID: betMakerNodeID,
		Amount:         arg.Amount,
		Direction:      arg.Direction,
		PayoutStatus:   models.PayoutNotCalculated,
	}
	if err := uow.BetRegistryRepository().CreateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to record bet: %w", err)
	}

	room.TotalPot += arg.Amount
	room.BetCount++
	switch arg.Direction {
	case models.BetDirectionHot:
		room.HotAmount += arg.Amount
	case models.BetDirectionNot:
		room.NotAmount += arg.Amount
	}
	if err := uow.BetRegistryRepository().UpdateRoomTotals(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room totals: %w", err)
	}

	uow.EventBus().Publish(events.BetReceivedEvent{
		PostID:         arg.PostID,
		SlotID:         slotID,
		RoomID:         room.RoomID,
		Bettor:         bettor,
		BetMakerNodeID: betMakerNodeID,
		Amount:         arg.Amount,
		Direction:      arg.Direction,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.BettingStatus{
		Open:                 true,
		StartedAt:            post.CreatedAt,
		NumberOfParticipants: room.BetCount,
		OngoingSlot:          slotID,
		OngoingRoom:          room.RoomID,
		HasParticipated:      true,
	}, nil
}

// assignRoom returns the slot's open room, opening the first or the next one
// when none exists or the current one is at capacity.
func (s *settlementService) assignRoom(ctx context.Context, uow UnitOfWork, postID, slotID int64) (*models.RoomDetail, error) {
	registry := uow.BetRegistryRepository()

	activeRoomID, found, err := registry.GetActiveRoom(ctx, postID, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active room: %w", err)
	}

	if found {
		room, err := registry.GetRoom(ctx, postID, slotID, activeRoomID)
		if err != nil {
			return nil, fmt.Errorf("failed to get room: %w", err)
		}
		if room != nil && !room.IsFull(s.cfg.RoomCapacity) {
			return room, nil
		}
		// Room full; open the next one
		activeRoomID++
	} else {
		activeRoomID = 1
	}

	room := &models.RoomDetail{
		PostID:  postID,
		SlotID:  slotID,
		RoomID:  activeRoomID,
		Outcome: models.RoomOutcomeOngoing,
	}
	if err := registry.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if err := registry.SetActiveRoom(ctx, postID, slotID, activeRoomID); err != nil {
		return nil, fmt.Errorf("failed to set active room: %w", err)
	}

	return room, nil
}

// TabulateOutcome settles every room of a post's slot. Removing the slot from
// the pending set is the idempotence guard: a duplicate timer fire finds the
// slot gone and does nothing. Notifications go out only after the local
// commit, fire-and-forget; the bet-maker's reconciliation sweep covers any
// that are lost.
func (s *settlementService) TabulateOutcome(ctx context.Context, postID, slotID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	post, err := uow.PostRepository().GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		// Post deleted since the timer was armed
		log.WithFields(log.Fields{
			"postID": postID,
			"slotID": slotID,
		}).Debug("Skipping tabulation for deleted post")
		return nil
	}

	removed, err := uow.PostRepository().RemovePendingSlot(ctx, postID, slotID)
	if err != nil {
		return fmt.Errorf("failed to remove pending slot: %w", err)
	}
	if !removed {
		// Already tabulated by an earlier fire
		return nil
	}

	rooms, err := uow.BetRegistryRepository().GetRoomsForSlot(ctx, postID, slotID)
	if err != nil {
		return fmt.Errorf("failed to get rooms for slot: %w", err)
	}

	var notifications []struct {
		nodeID string
		notif  models.EarningsNotification
	}

	for _, room := range rooms {
		if room.Outcome != models.RoomOutcomeOngoing {
			continue
		}
		outcome := room.DecideOutcome()
		if err := uow.BetRegistryRepository().SetRoomOutcome(ctx, postID, slotID, room.RoomID, outcome); err != nil {
			return fmt.Errorf("failed to set room outcome: %w", err)
		}

		bets, err := uow.BetRegistryRepository().GetBetsForRoom(ctx, postID, slotID, room.RoomID)
		if err != nil {
			return fmt.Errorf("failed to get bets for room: %w", err)
		}

		for _, bet := range bets {
			payout := bet.Payout(outcome, s.cfg.CommissionPct)
			set, err := uow.BetRegistryRepository().SetBetPayout(ctx, bet, payout)
			if err != nil {
				return fmt.Errorf("failed to set bet payout: %w", err)
			}
			if !set {
				// Payout already calculated; never recompute
				continue
			}

			notifications = append(notifications, struct {
				nodeID string
				notif  models.EarningsNotification
			}{
				nodeID: bet.BetMakerNodeID,
				notif: models.EarningsNotification{
					PostNodeID: s.cfg.NodeID,
					PostID:     postID,
					Outcome:    betOutcomeFor(bet, outcome, payout),
				},
			})
		}

		// Creator commission on decided rooms only
		if outcome != models.RoomOutcomeDraw && room.TotalPot > 0 {
			commission := models.CreatorCommission(room.TotalPot, s.cfg.CommissionPct)
			if commission > 0 {
				ev := &models.TokenEvent{
					EventType: models.TokenEventHotOrNotPayout,
					Reason:    models.ReasonCreatorCommission,
					Amount:    commission,
					Details: map[string]any{
						"post_id": postID,
						"slot_id": slotID,
						"room_id": room.RoomID,
					},
				}
				if err := RecordTokenEvent(ctx, uow, ev); err != nil {
					return fmt.Errorf("failed to credit commission: %w", err)
				}
			}
		}
	}

	uow.EventBus().Publish(events.SlotResolvedEvent{
		PostID:        postID,
		SlotID:        slotID,
		RoomsResolved: len(rooms),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit tabulation: %w", err)
	}

	for _, n := range notifications {
		if err := s.notifier.NotifyEarnings(ctx, n.nodeID, n.notif); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"betMakerNodeID": n.nodeID,
				"postID":         n.notif.PostID,
			}).Warn("Failed to deliver earnings notification")
		}
	}

	return nil
}

// GetBetOutcome returns the settled outcome of a bettor's bet. An untabulated
// bet reports awaiting.
func (s *settlementService) GetBetOutcome(ctx context.Context, postID int64, bettor models.Principal) (*models.BetOutcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRegistryRepository().GetBetForBettor(ctx, postID, bettor)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, models.ErrPostNotFound
	}
	if bet.PayoutStatus != models.PayoutCalculated {
		return &models.BetOutcome{Kind: models.BetOutcomeAwaiting}, nil
	}

	room, err := uow.BetRegistryRepository().GetRoom(ctx, bet.PostID, bet.SlotID, bet.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("room (%d,%d,%d) missing for settled bet", bet.PostID, bet.SlotID, bet.RoomID)
	}

	outcome := betOutcomeFor(bet, room.Outcome, bet.PayoutAmount)
	return &outcome, nil
}

// betOutcomeFor maps a settled room outcome onto the bet-maker's view of the bet.
func betOutcomeFor(bet *models.BetDetail, outcome models.RoomOutcome, payout int64) models.BetOutcome {
	switch outcome {
	case models.RoomOutcomeDraw:
		return models.BetOutcome{Kind: models.BetOutcomeDraw, Amount: payout}
	case models.RoomOutcomeHotWon:
		if bet.Direction == models.BetDirectionHot {
			return models.BetOutcome{Kind: models.BetOutcomeWon, Amount: payout}
		}
	case models.RoomOutcomeNotWon:
		if bet.Direction == models.BetDirectionNot {
			return models.BetOutcome{Kind: models.BetOutcomeWon, Amount: payout}
		}
	}
	return models.BetOutcome{Kind: models.BetOutcomeLost}
}
