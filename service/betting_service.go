package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotornot/config"
	"hotornot/events"
	"hotornot/models"

	log "github.com/sirupsen/logrus"
)

type bettingService struct {
	uowFactory UnitOfWorkFactory
	client     PostNodeClient
	cfg        *config.Config
	now        func() time.Time
}

// NewBettingService creates a new bet-maker side betting service
func NewBettingService(uowFactory UnitOfWorkFactory, client PostNodeClient, cfg *config.Config) BettingService {
	return &bettingService{
		uowFactory: uowFactory,
		client:     client,
		cfg:        cfg,
		now:        time.Now,
	}
}

// PlaceBetOnPost places a bet on a post hosted by another node.
//
// The stake is reserved on the local ledger and committed before the remote
// call is made, so any message interleaved between the reservation and the
// remote response sees the debited balance. Reconciliation runs in a fresh
// transaction reading current state: a remote failure is compensated with a
// refund event, never by un-applying the stake.
func (s *bettingService) PlaceBetOnPost(ctx context.Context, bettor models.Principal, arg models.PlaceBetArg) (*models.BettingStatus, error) {
	if err := s.prepareForBet(ctx, bettor, arg); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.NodeCallTimeout)
	status, callErr := s.client.PlaceBet(callCtx, arg.PostNodeID, bettor, s.cfg.NodeID, arg)
	cancel()

	return s.processPlaceBetResult(ctx, arg, status, callErr)
}

// prepareForBet validates the bet and reserves the stake.
func (s *bettingService) prepareForBet(ctx context.Context, bettor models.Principal, arg models.PlaceBetArg) error {
	if bettor.IsAnonymous() {
		return models.ErrUserNotLoggedIn
	}
	if s.cfg.OwnerPrincipal == "" {
		return models.ErrUserPrincipalNotSet
	}
	if string(bettor) != s.cfg.OwnerPrincipal {
		return models.ErrUnauthorized
	}
	if arg.Amount <= 0 {
		return fmt.Errorf("bet amount must be positive")
	}
	if !arg.Direction.IsValid() {
		return fmt.Errorf("invalid bet direction %q", arg.Direction)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.PlacedBetRepository().Get(ctx, arg.PostNodeID, arg.PostID)
	if err != nil {
		return fmt.Errorf("failed to check existing bet: %w", err)
	}
	if existing != nil {
		return models.ErrAlreadyParticipated
	}

	balance, err := uow.LedgerRepository().GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Balance < arg.Amount {
		return models.ErrInsufficientBalance
	}

	stake := &models.TokenEvent{
		EventType: models.TokenEventStake,
		Reason:    models.ReasonBetOnPost,
		Amount:    arg.Amount,
		Details: map[string]any{
			"post_node_id": arg.PostNodeID,
			"post_id":      arg.PostID,
			"direction":    string(arg.Direction),
		},
	}
	if err := RecordTokenEvent(ctx, uow, stake); err != nil {
		return fmt.Errorf("failed to reserve stake: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit stake reservation: %w", err)
	}
	return nil
}

// processPlaceBetResult reconciles the remote call's result against the
// reserved stake: commit the placed-bet record on success, refund on failure.
func (s *bettingService) processPlaceBetResult(ctx context.Context, arg models.PlaceBetArg, status *models.BettingStatus, callErr error) (*models.BettingStatus, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer uow.Rollback()

	if callErr != nil || status == nil || !status.Open {
		reason := models.ReasonBetCallFailed
		resultErr := models.ErrPostNodeCallFailed
		if callErr != nil {
			// Remote validation errors come back typed; the stake is
			// refunded for those too, and the caller sees the remote's
			// own error.
			if errors.Is(callErr, models.ErrBettingClosed) {
				reason = models.ReasonBettingClosed
				resultErr = models.ErrBettingClosed
			} else if errors.Is(callErr, models.ErrAlreadyParticipated) {
				resultErr = models.ErrAlreadyParticipated
			} else if errors.Is(callErr, models.ErrPostNotFound) {
				resultErr = models.ErrPostNotFound
			} else {
				log.WithError(callErr).WithFields(log.Fields{
					"postNodeID": arg.PostNodeID,
					"postID":     arg.PostID,
				}).Warn("Bet placement call failed, refunding stake")
			}
		} else {
			reason = models.ReasonBettingClosed
			resultErr = models.ErrBettingClosed
		}

		refund := &models.TokenEvent{
			EventType: models.TokenEventBetFailureRefund,
			Reason:    reason,
			Amount:    arg.Amount,
			Details: map[string]any{
				"post_node_id": arg.PostNodeID,
				"post_id":      arg.PostID,
			},
		}
		if err := RecordTokenEvent(ctx, uow, refund); err != nil {
			return nil, fmt.Errorf("failed to refund stake: %w", err)
		}
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit refund: %w", err)
		}
		return nil, resultErr
	}

	placed := &models.PlacedBet{
		PostNodeID:  arg.PostNodeID,
		PostID:      arg.PostID,
		SlotID:      status.OngoingSlot,
		RoomID:      status.OngoingRoom,
		Amount:      arg.Amount,
		Direction:   arg.Direction,
		OutcomeKind: models.BetOutcomeAwaiting,
	}
	if err := uow.PlacedBetRepository().Create(ctx, placed); err != nil {
		return nil, fmt.Errorf("failed to record placed bet: %w", err)
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		PostNodeID: arg.PostNodeID,
		PostID:     arg.PostID,
		SlotID:     status.OngoingSlot,
		RoomID:     status.OngoingRoom,
		Amount:     arg.Amount,
		Direction:  arg.Direction,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit placed bet: %w", err)
	}

	return status, nil
}

// ReceiveEarnings applies a settlement notification to the owner's ledger.
// The outcome transition awaiting -> settled happens at most once; a repeat
// notification finds the guard already tripped and changes nothing.
func (s *bettingService) ReceiveEarnings(ctx context.Context, notification models.EarningsNotification) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.PlacedBetRepository().Get(ctx, notification.PostNodeID, notification.PostID)
	if err != nil {
		return fmt.Errorf("failed to get placed bet: %w", err)
	}
	if bet == nil {
		// Never placed here; a stale or misdirected notification
		log.WithFields(log.Fields{
			"postNodeID": notification.PostNodeID,
			"postID":     notification.PostID,
		}).Warn("Earnings notification for unknown bet")
		return nil
	}

	recorded, err := uow.PlacedBetRepository().RecordOutcome(ctx, notification.PostNodeID, notification.PostID, notification.Outcome)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	if !recorded {
		// Outcome already applied
		return nil
	}

	switch notification.Outcome.Kind {
	case models.BetOutcomeWon, models.BetOutcomeDraw:
		reason := models.ReasonWinnings
		if notification.Outcome.Kind == models.BetOutcomeDraw {
			reason = models.ReasonDrawRefund
		}
		payout := &models.TokenEvent{
			EventType: models.TokenEventHotOrNotPayout,
			Reason:    reason,
			Amount:    notification.Outcome.Amount,
			Details: map[string]any{
				"post_node_id": notification.PostNodeID,
				"post_id":      notification.PostID,
			},
		}
		if err := RecordTokenEvent(ctx, uow, payout); err != nil {
			return fmt.Errorf("failed to credit payout: %w", err)
		}
	case models.BetOutcomeLost:
		// The stake was already debited at placement; nothing to credit.
	default:
		return fmt.Errorf("unexpected outcome kind %q", notification.Outcome.Kind)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit earnings: %w", err)
	}
	return nil
}

// ResolvePendingBets is the reconciliation sweep for lost settlement
// notifications: any bet still awaiting a result past the grace period is
// resolved by polling the post-owner node directly.
func (s *bettingService) ResolvePendingBets(ctx context.Context) (int, error) {
	// A bet's slot closes at most one slot duration after placement, so
	// anything older than a slot plus the grace period should have settled.
	cutoff := s.now().Add(-(s.cfg.SlotDuration + s.cfg.ResolveGracePeriod))

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	awaiting, err := uow.PlacedBetRepository().ListAwaiting(ctx, cutoff)
	uow.Rollback()
	if err != nil {
		return 0, fmt.Errorf("failed to list awaiting bets: %w", err)
	}

	resolved := 0
	for _, bet := range awaiting {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.NodeCallTimeout)
		outcome, err := s.client.GetBetOutcome(callCtx, bet.PostNodeID, bet.PostID, models.Principal(s.cfg.OwnerPrincipal))
		cancel()
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"postNodeID": bet.PostNodeID,
				"postID":     bet.PostID,
			}).Warn("Failed to poll bet outcome")
			continue
		}
		if outcome.Kind == models.BetOutcomeAwaiting {
			// Remote has not tabulated yet; try again next sweep
			continue
		}

		err = s.ReceiveEarnings(ctx, models.EarningsNotification{
			PostNodeID: bet.PostNodeID,
			PostID:     bet.PostID,
			Outcome:    *outcome,
		})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"postNodeID": bet.PostNodeID,
				"postID":     bet.PostID,
			}).Error("Failed to apply polled outcome")
			continue
		}
		resolved++
	}

	return resolved, nil
}
