package repository

import (
	"context"
	"fmt"

	"hotornot/database"
	"hotornot/models"

	"github.com/jackc/pgx/v5"
)

// BetRegistryRepository implements the service.BetRegistryRepository interface
type BetRegistryRepository struct {
	q queryable
}

// NewBetRegistryRepository creates a new bet registry repository
func NewBetRegistryRepository(db *database.DB) *BetRegistryRepository {
	return &BetRegistryRepository{q: db.Pool}
}

// newBetRegistryRepositoryWithTx creates a new bet registry repository with a transaction
func newBetRegistryRepositoryWithTx(tx queryable) *BetRegistryRepository {
	return &BetRegistryRepository{q: tx}
}

// TryInsertPostPrincipal inserts the (post, bettor) dedup key. Returns false
// if the bettor already participated in the post.
func (r *BetRegistryRepository) TryInsertPostPrincipal(ctx context.Context, postID int64, bettor models.Principal) (bool, error) {
	query := `
		INSERT INTO post_principals (post_id, bettor_principal)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, postID, bettor)
	if err != nil {
		return false, fmt.Errorf("failed to insert post principal: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetActiveRoom returns the slot's currently open room ID
func (r *BetRegistryRepository) GetActiveRoom(ctx context.Context, postID, slotID int64) (int64, bool, error) {
	var roomID int64
	query := `SELECT active_room_id FROM slot_details WHERE post_id = $1 AND slot_id = $2`
	err := r.q.QueryRow(ctx, query, postID, slotID).Scan(&roomID)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get active room: %w", err)
	}
	return roomID, true, nil
}

// SetActiveRoom records the slot's currently open room
func (r *BetRegistryRepository) SetActiveRoom(ctx context.Context, postID, slotID, roomID int64) error {
	query := `
		INSERT INTO slot_details (post_id, slot_id, active_room_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, slot_id) DO UPDATE SET active_room_id = EXCLUDED.active_room_id
	`

	if _, err := r.q.Exec(ctx, query, postID, slotID, roomID); err != nil {
		return fmt.Errorf("failed to set active room: %w", err)
	}
	return nil
}

// CreateRoom creates a fresh room record
func (r *BetRegistryRepository) CreateRoom(ctx context.Context, room *models.RoomDetail) error {
	query := `
		INSERT INTO room_details (post_id, slot_id, room_id, total_pot, hot_amount, not_amount, bet_count, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		room.PostID,
		room.SlotID,
		room.RoomID,
		room.TotalPot,
		room.HotAmount,
		room.NotAmount,
		room.BetCount,
		room.Outcome,
	).Scan(&room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room; nil if absent
func (r *BetRegistryRepository) GetRoom(ctx context.Context, postID, slotID, roomID int64) (*models.RoomDetail, error) {
	query := `
		SELECT post_id, slot_id, room_id, total_pot, hot_amount, not_amount, bet_count, outcome, created_at
		FROM room_details
		WHERE post_id = $1 AND slot_id = $2 AND room_id = $3
	`

	var room models.RoomDetail
	err := r.q.QueryRow(ctx, query, postID, slotID, roomID).Scan(
		&room.PostID,
		&room.SlotID,
		&room.RoomID,
		&room.TotalPot,
		&room.HotAmount,
		&room.NotAmount,
		&room.BetCount,
		&room.Outcome,
		&room.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &room, nil
}

// UpdateRoomTotals persists a room's pot totals and bet count
func (r *BetRegistryRepository) UpdateRoomTotals(ctx context.Context, room *models.RoomDetail) error {
	query := `
		UPDATE room_details
		SET total_pot = $4, hot_amount = $5, not_amount = $6, bet_count = $7
		WHERE post_id = $1 AND slot_id = $2 AND room_id = $3
	`

	tag, err := r.q.Exec(ctx, query,
		room.PostID, room.SlotID, room.RoomID,
		room.TotalPot, room.HotAmount, room.NotAmount, room.BetCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update room totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room (%d,%d,%d) not found", room.PostID, room.SlotID, room.RoomID)
	}
	return nil
}

// SetRoomOutcome records a room's settled outcome
func (r *BetRegistryRepository) SetRoomOutcome(ctx context.Context, postID, slotID, roomID int64, outcome models.RoomOutcome) error {
	query := `
		UPDATE room_details
		SET outcome = $4
		WHERE post_id = $1 AND slot_id = $2 AND room_id = $3
	`

	if _, err := r.q.Exec(ctx, query, postID, slotID, roomID, outcome); err != nil {
		return fmt.Errorf("failed to set room outcome: %w", err)
	}
	return nil
}

// GetRoomsForSlot returns all rooms of a slot in room order
func (r *BetRegistryRepository) GetRoomsForSlot(ctx context.Context, postID, slotID int64) ([]*models.RoomDetail, error) {
	query := `
		SELECT post_id, slot_id, room_id, total_pot, hot_amount, not_amount, bet_count, outcome, created_at
		FROM room_details
		WHERE post_id = $1 AND slot_id = $2
		ORDER BY room_id
	`

	rows, err := r.q.Query(ctx, query, postID, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms for slot: %w", err)
	}
	defer rows.Close()

	var rooms []*models.RoomDetail
	for rows.Next() {
		var room models.RoomDetail
		if err := rows.Scan(
			&room.PostID,
			&room.SlotID,
			&room.RoomID,
			&room.TotalPot,
			&room.HotAmount,
			&room.NotAmount,
			&room.BetCount,
			&room.Outcome,
			&room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// CreateBet records an individual bet
func (r *BetRegistryRepository) CreateBet(ctx context.Context, bet *models.BetDetail) error {
	query := `
		INSERT INTO bet_details
		(post_id, slot_id, room_id, bettor_principal, bet_maker_node_id, amount, direction, payout_status, payout_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.PostID,
		bet.SlotID,
		bet.RoomID,
		bet.Bettor,
		bet.BetMakerNodeID,
		bet.Amount,
		bet.Direction,
		bet.PayoutStatus,
		bet.PayoutAmount,
	).Scan(&bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

// GetBetsForRoom returns all bets assigned to a room
func (r *BetRegistryRepository) GetBetsForRoom(ctx context.Context, postID, slotID, roomID int64) ([]*models.BetDetail, error) {
	query := `
		SELECT post_id, slot_id, room_id, bettor_principal, bet_maker_node_id, amount, direction, payout_status, payout_amount, created_at
		FROM bet_details
		WHERE post_id = $1 AND slot_id = $2 AND room_id = $3
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, postID, slotID, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets for room: %w", err)
	}
	defer rows.Close()

	return scanBets(rows)
}

// GetBetForBettor returns the bettor's bet on a post; nil if absent
func (r *BetRegistryRepository) GetBetForBettor(ctx context.Context, postID int64, bettor models.Principal) (*models.BetDetail, error) {
	query := `
		SELECT post_id, slot_id, room_id, bettor_principal, bet_maker_node_id, amount, direction, payout_status, payout_amount, created_at
		FROM bet_details
		WHERE post_id = $1 AND bettor_principal = $2
	`

	rows, err := r.q.Query(ctx, query, postID, bettor)
	if err != nil {
		return nil, fmt.Errorf("failed to query bet for bettor: %w", err)
	}
	defer rows.Close()

	bets, err := scanBets(rows)
	if err != nil {
		return nil, err
	}
	if len(bets) == 0 {
		return nil, nil
	}
	return bets[0], nil
}

// SetBetPayout transitions a bet's payout to calculated. The guard on
// payout_status makes the transition happen at most once.
func (r *BetRegistryRepository) SetBetPayout(ctx context.Context, bet *models.BetDetail, payout int64) (bool, error) {
	query := `
		UPDATE bet_details
		SET payout_status = $5, payout_amount = $6
		WHERE post_id = $1 AND slot_id = $2 AND room_id = $3 AND bettor_principal = $4
		  AND payout_status = $7
	`

	tag, err := r.q.Exec(ctx, query,
		bet.PostID, bet.SlotID, bet.RoomID, bet.Bettor,
		models.PayoutCalculated, payout,
		models.PayoutNotCalculated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set bet payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	bet.PayoutStatus = models.PayoutCalculated
	bet.PayoutAmount = payout
	return true, nil
}

func scanBets(rows pgx.Rows) ([]*models.BetDetail, error) {
	var bets []*models.BetDetail
	for rows.Next() {
		var bet models.BetDetail
		if err := rows.Scan(
			&bet.PostID,
			&bet.SlotID,
			&bet.RoomID,
			&bet.Bettor,
			&bet.BetMakerNodeID,
			&bet.Amount,
			&bet.Direction,
			&bet.PayoutStatus,
			&bet.PayoutAmount,
			&bet.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &bet)
	}
	return bets, rows.Err()
}
