package models

import (
	"time"
)

// BetDirection is the side a bettor takes on a post.
type BetDirection string

const (
	BetDirectionHot BetDirection = "hot"
	BetDirectionNot BetDirection = "not"
)

// IsValid reports whether the direction is one of the two known sides.
func (d BetDirection) IsValid() bool {
	return d == BetDirectionHot || d == BetDirectionNot
}

// RoomOutcome is the settled result of a room.
type RoomOutcome string

const (
	RoomOutcomeOngoing RoomOutcome = "ongoing"
	RoomOutcomeHotWon  RoomOutcome = "hot_won"
	RoomOutcomeNotWon  RoomOutcome = "not_won"
	RoomOutcomeDraw    RoomOutcome = "draw"
)

// RoomDetail is one bounded-capacity bucket of bets within a slot. A room
// accepts bets only while Outcome is ongoing; settled rooms are kept for audit.
type RoomDetail struct {
	PostID    int64       `db:"post_id"`
	SlotID    int64       `db:"slot_id"`
	RoomID    int64       `db:"room_id"`
	TotalPot  int64       `db:"total_pot"`
	HotAmount int64       `db:"hot_amount"`
	NotAmount int64       `db:"not_amount"`
	BetCount  int         `db:"bet_count"`
	Outcome   RoomOutcome `db:"outcome"`
	CreatedAt time.Time   `db:"created_at"`
}

// DecideOutcome tabulates the room from its side totals. Equal pots on both
// sides is a draw.
func (r *RoomDetail) DecideOutcome() RoomOutcome {
	switch {
	case r.HotAmount > r.NotAmount:
		return RoomOutcomeHotWon
	case r.NotAmount > r.HotAmount:
		return RoomOutcomeNotWon
	default:
		return RoomOutcomeDraw
	}
}

// IsFull reports whether the room has reached the bettor capacity limit.
func (r *RoomDetail) IsFull(capacity int) bool {
	return r.BetCount >= capacity
}

// PayoutStatus tracks whether a bet's payout has been computed. The
// transition not_calculated -> calculated happens exactly once.
type PayoutStatus string

const (
	PayoutNotCalculated PayoutStatus = "not_calculated"
	PayoutCalculated    PayoutStatus = "calculated"
)

// BetDetail is a single bet recorded on the post-owner node. One bet per
// principal per post, enforced by the post-principal dedup index.
type BetDetail struct {
	PostID         int64        `db:"post_id"`
	SlotID         int64        `db:"slot_id"`
	RoomID         int64        `db:"room_id"`
	Bettor         Principal    `db:"bettor_principal"`
	BetMakerNodeID string       `db:"bet_maker_node_id"`
	Amount         int64        `db:"amount"`
	Direction      BetDirection `db:"direction"`
	PayoutStatus   PayoutStatus `db:"payout_status"`
	PayoutAmount   int64        `db:"payout_amount"`
	CreatedAt      time.Time    `db:"created_at"`
}

// WinnerPayout computes a winning bet's payout: double the stake less the
// creator commission.
func WinnerPayout(amount int64, commissionPct int64) int64 {
	return amount * 2 * (100 - commissionPct) / 100
}

// DrawPayout computes the refund for a bet in a drawn room.
func DrawPayout(amount int64) int64 {
	return amount
}

// CreatorCommission computes the post creator's cut of a decided room's pot.
// Drawn rooms pay no commission.
func CreatorCommission(totalPot int64, commissionPct int64) int64 {
	return totalPot * commissionPct / 100
}

// Payout computes the bet's payout given the settled room outcome.
func (b *BetDetail) Payout(outcome RoomOutcome, commissionPct int64) int64 {
	switch outcome {
	case RoomOutcomeDraw:
		return DrawPayout(b.Amount)
	case RoomOutcomeHotWon:
		if b.Direction == BetDirectionHot {
			return WinnerPayout(b.Amount, commissionPct)
		}
	case RoomOutcomeNotWon:
		if b.Direction == BetDirectionNot {
			return WinnerPayout(b.Amount, commissionPct)
		}
	}
	return 0
}

// BetOutcomeKind is the result of a bet as seen by the bet-maker node.
type BetOutcomeKind string

const (
	BetOutcomeAwaiting BetOutcomeKind = "awaiting"
	BetOutcomeWon      BetOutcomeKind = "won"
	BetOutcomeLost     BetOutcomeKind = "lost"
	BetOutcomeDraw     BetOutcomeKind = "draw"
)

// BetOutcome pairs an outcome kind with its payout amount. Amount is zero for
// awaiting and lost.
type BetOutcome struct {
	Kind   BetOutcomeKind `json:"kind"`
	Amount int64          `json:"amount"`
}

// PlacedBet is the bet-maker node's own durable record of an outbound bet,
// keyed by (post node, post). At most one entry exists per post per bettor.
type PlacedBet struct {
	PostNodeID    string         `db:"post_node_id"`
	PostID        int64          `db:"post_id"`
	SlotID        int64          `db:"slot_id"`
	RoomID        int64          `db:"room_id"`
	Amount        int64          `db:"amount"`
	Direction     BetDirection   `db:"direction"`
	OutcomeKind   BetOutcomeKind `db:"outcome_kind"`
	OutcomeAmount int64          `db:"outcome_amount"`
	PlacedAt      time.Time      `db:"placed_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// PlaceBetArg identifies the target post and the bet parameters.
type PlaceBetArg struct {
	PostNodeID string       `json:"post_node_id"`
	PostID     int64        `json:"post_id"`
	Amount     int64        `json:"amount"`
	Direction  BetDirection `json:"direction"`
}

// BettingStatus is the post-owner node's answer to a bet placement.
type BettingStatus struct {
	Open                 bool      `json:"open"`
	StartedAt            time.Time `json:"started_at,omitempty"`
	NumberOfParticipants int       `json:"number_of_participants,omitempty"`
	OngoingSlot          int64     `json:"ongoing_slot,omitempty"`
	OngoingRoom          int64     `json:"ongoing_room,omitempty"`
	HasParticipated      bool      `json:"has_participated,omitempty"`
}

// EarningsNotification tells a bet-maker node how one of its bets settled.
type EarningsNotification struct {
	PostNodeID string     `json:"post_node_id"`
	PostID     int64      `json:"post_id"`
	Outcome    BetOutcome `json:"outcome"`
}
