package repository

import (
	"context"
	"fmt"
	"time"

	"hotornot/database"
	"hotornot/models"

	"github.com/jackc/pgx/v5"
)

// PlacedBetRepository implements the service.PlacedBetRepository interface
type PlacedBetRepository struct {
	q queryable
}

// NewPlacedBetRepository creates a new placed bet repository
func NewPlacedBetRepository(db *database.DB) *PlacedBetRepository {
	return &PlacedBetRepository{q: db.Pool}
}

// newPlacedBetRepositoryWithTx creates a new placed bet repository with a transaction
func newPlacedBetRepositoryWithTx(tx queryable) *PlacedBetRepository {
	return &PlacedBetRepository{q: tx}
}

// Get retrieves the owner's bet on a remote post; nil if absent
func (r *PlacedBetRepository) Get(ctx context.Context, postNodeID string, postID int64) (*models.PlacedBet, error) {
	query := `
		SELECT post_node_id, post_id, slot_id, room_id, amount, direction, outcome_kind, outcome_amount, placed_at, updated_at
		FROM placed_bets
		WHERE post_node_id = $1 AND post_id = $2
	`

	var bet models.PlacedBet
	err := r.q.QueryRow(ctx, query, postNodeID, postID).Scan(
		&bet.PostNodeID,
		&bet.PostID,
		&bet.SlotID,
		&bet.RoomID,
		&bet.Amount,
		&bet.Direction,
		&bet.OutcomeKind,
		&bet.OutcomeAmount,
		&bet.PlacedAt,
		&bet.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get placed bet: %w", err)
	}

	return &bet, nil
}

// Create records a freshly committed outbound bet
func (r *PlacedBetRepository) Create(ctx context.Context, bet *models.PlacedBet) error {
	query := `
		INSERT INTO placed_bets
		(post_node_id, post_id, slot_id, room_id, amount, direction, outcome_kind, outcome_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING placed_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.PostNodeID,
		bet.PostID,
		bet.SlotID,
		bet.RoomID,
		bet.Amount,
		bet.Direction,
		bet.OutcomeKind,
		bet.OutcomeAmount,
	).Scan(&bet.PlacedAt, &bet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create placed bet: %w", err)
	}
	return nil
}

// RecordOutcome transitions the bet from awaiting to the given outcome. The
// guard on outcome_kind makes repeat notifications no-ops.
func (r *PlacedBetRepository) RecordOutcome(ctx context.Context, postNodeID string, postID int64, outcome models.BetOutcome) (bool, error) {
	query := `
		UPDATE placed_bets
		SET outcome_kind = $3, outcome_amount = $4, updated_at = NOW()
		WHERE post_node_id = $1 AND post_id = $2 AND outcome_kind = $5
	`

	tag, err := r.q.Exec(ctx, query,
		postNodeID, postID,
		outcome.Kind, outcome.Amount,
		models.BetOutcomeAwaiting,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record bet outcome: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAwaiting returns outbound bets still awaiting a result that were placed
// before the cutoff
func (r *PlacedBetRepository) ListAwaiting(ctx context.Context, placedBefore time.Time) ([]*models.PlacedBet, error) {
	query := `
		SELECT post_node_id, post_id, slot_id, room_id, amount, direction, outcome_kind, outcome_amount, placed_at, updated_at
		FROM placed_bets
		WHERE outcome_kind = $1 AND placed_at < $2
		ORDER BY placed_at
	`

	rows, err := r.q.Query(ctx, query, models.BetOutcomeAwaiting, placedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query awaiting bets: %w", err)
	}
	defer rows.Close()

	var bets []*models.PlacedBet
	for rows.Next() {
		var bet models.PlacedBet
		if err := rows.Scan(
			&bet.PostNodeID,
			&bet.PostID,
			&bet.SlotID,
			&bet.RoomID,
			&bet.Amount,
			&bet.Direction,
			&bet.OutcomeKind,
			&bet.OutcomeAmount,
			&bet.PlacedAt,
			&bet.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan placed bet: %w", err)
		}
		bets = append(bets, &bet)
	}

	return bets, rows.Err()
}
