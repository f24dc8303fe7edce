package service

import (
	"context"
	"fmt"

	"hotornot/config"
	"hotornot/events"
	"hotornot/models"
)

// RecordTokenEvent applies a token event to the running balance, persists
// both, and stages a balance-change event on the unit of work's bus. This is
// the single mutation path for the ledger; no caller touches the balance
// directly.
//
// Callers validate sufficiency before emitting debit events. A debit that
// would underflow returns models.ErrLedgerUnderflow and persists nothing.
func RecordTokenEvent(ctx context.Context, uow UnitOfWork, ev *models.TokenEvent) error {
	balance, err := uow.LedgerRepository().GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token balance: %w", err)
	}

	oldBalance := balance.Balance

	if err := balance.Apply(ev); err != nil {
		return err
	}

	if err := uow.LedgerRepository().SaveBalance(ctx, balance); err != nil {
		return fmt.Errorf("failed to save token balance: %w", err)
	}

	if err := uow.LedgerRepository().AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to append token event: %w", err)
	}

	if err := maybeTrimHistory(ctx, uow); err != nil {
		return err
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		EventType:    ev.EventType,
		Reason:       ev.Reason,
		OldBalance:   oldBalance,
		NewBalance:   balance.Balance,
		ChangeAmount: ev.ChangeAmount,
	})

	return nil
}

// maybeTrimHistory enforces the bounded-memory retention policy: once the
// retained history grows past the truncate threshold, only the most recent
// retain-count events are kept. The running balance is untouched.
func maybeTrimHistory(ctx context.Context, uow UnitOfWork) error {
	cfg := config.Get()

	count, err := uow.LedgerRepository().CountEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to count token events: %w", err)
	}
	if count <= cfg.HistoryTruncateThreshold {
		return nil
	}

	if _, err := uow.LedgerRepository().TrimHistory(ctx, cfg.HistoryRetainCount); err != nil {
		return fmt.Errorf("failed to trim token event history: %w", err)
	}
	return nil
}
