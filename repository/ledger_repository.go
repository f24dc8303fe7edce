package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"hotornot/database"
	"hotornot/models"
)

// LedgerRepository implements the service.LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// GetBalance returns the node owner's running balance counters
func (r *LedgerRepository) GetBalance(ctx context.Context) (*models.TokenBalance, error) {
	query := `
		SELECT balance, net_airdrop, net_earnings, updated_at
		FROM token_balance
		WHERE id = 1
	`

	var balance models.TokenBalance
	err := r.q.QueryRow(ctx, query).Scan(
		&balance.Balance,
		&balance.NetAirdrop,
		&balance.NetEarnings,
		&balance.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	return &balance, nil
}

// SaveBalance persists the running balance counters
func (r *LedgerRepository) SaveBalance(ctx context.Context, balance *models.TokenBalance) error {
	query := `
		UPDATE token_balance
		SET balance = $1, net_airdrop = $2, net_earnings = $3, updated_at = NOW()
		WHERE id = 1
	`

	if _, err := r.q.Exec(ctx, query, balance.Balance, balance.NetAirdrop, balance.NetEarnings); err != nil {
		return fmt.Errorf("failed to save token balance: %w", err)
	}
	return nil
}

// AppendEvent appends an event to the history, filling in ID and CreatedAt
func (r *LedgerRepository) AppendEvent(ctx context.Context, event *models.TokenEvent) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	query := `
		INSERT INTO token_events
		(event_type, reason, amount, change_amount, balance_after, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		event.EventType,
		event.Reason,
		event.Amount,
		event.ChangeAmount,
		event.BalanceAfter,
		detailsJSON,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append token event: %w", err)
	}

	return nil
}

// GetRecentEvents returns the most recent events, newest first
func (r *LedgerRepository) GetRecentEvents(ctx context.Context, limit int) ([]*models.TokenEvent, error) {
	query := `
		SELECT id, event_type, reason, amount, change_amount, balance_after, details, created_at
		FROM token_events
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query token events: %w", err)
	}
	defer rows.Close()

	var evts []*models.TokenEvent
	for rows.Next() {
		var ev models.TokenEvent
		var detailsJSON []byte
		if err := rows.Scan(
			&ev.ID,
			&ev.EventType,
			&ev.Reason,
			&ev.Amount,
			&ev.ChangeAmount,
			&ev.BalanceAfter,
			&detailsJSON,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan token event: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &ev.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
			}
		}
		evts = append(evts, &ev)
	}

	return evts, rows.Err()
}

// CountEvents returns the number of retained events
func (r *LedgerRepository) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM token_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count token events: %w", err)
	}
	return count, nil
}

// TrimHistory drops the oldest events so at most retain remain. The running
// balance is unaffected; only retained history shrinks.
func (r *LedgerRepository) TrimHistory(ctx context.Context, retain int) (int64, error) {
	query := `
		DELETE FROM token_events
		WHERE id < (
			SELECT COALESCE(MIN(id), 0) FROM (
				SELECT id FROM token_events ORDER BY id DESC LIMIT $1
			) recent
		)
	`

	tag, err := r.q.Exec(ctx, query, retain)
	if err != nil {
		return 0, fmt.Errorf("failed to trim token event history: %w", err)
	}
	return tag.RowsAffected(), nil
}
