package models

import (
	"time"
)

// DefaultSlotDuration is the length of one betting slot.
const DefaultSlotDuration = time.Hour

// TotalSlots is the number of betting slots in a post's lifetime. Betting
// closes once the last slot ends.
const TotalSlots = 48

// Post is a piece of content hosted by this node. BettingEnabled is fixed at
// creation; a post that opted out never accepts bets.
type Post struct {
	ID               int64     `db:"id"`
	CreatorPrincipal Principal `db:"creator_principal"`
	Description      string    `db:"description"`
	VideoUID         string    `db:"video_uid"`
	BettingEnabled   bool      `db:"betting_enabled"`
	CreatedAt        time.Time `db:"created_at"`
}

// PendingSlot is one not-yet-tabulated slot of a post, paired with the post's
// creation time so a tabulation timer can be derived from it alone.
type PendingSlot struct {
	PostID        int64     `db:"post_id"`
	SlotID        int64     `db:"slot_id"`
	PostCreatedAt time.Time `db:"post_created_at"`
}

// CurrentSlot returns the 1-based slot that is open at now for a post created
// at createdAt. The second return is false once the betting horizon has
// elapsed (or if now precedes createdAt).
func CurrentSlot(createdAt, now time.Time, slotDuration time.Duration) (int64, bool) {
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		return 0, false
	}
	slot := int64(elapsed/slotDuration) + 1
	if slot > TotalSlots {
		return 0, false
	}
	return slot, true
}

// SlotEndsAt returns the instant slot slotID closes for a post created at
// createdAt. Tabulation for the slot is due at this instant.
func SlotEndsAt(createdAt time.Time, slotID int64, slotDuration time.Duration) time.Time {
	return createdAt.Add(time.Duration(slotID) * slotDuration)
}

// BettingClosedAt returns the end of the post's betting horizon.
func BettingClosedAt(createdAt time.Time, slotDuration time.Duration) time.Time {
	return SlotEndsAt(createdAt, TotalSlots, slotDuration)
}

// AllSlots returns the full set of slot IDs for a new betting-enabled post.
func AllSlots() []int64 {
	slots := make([]int64, TotalSlots)
	for i := range slots {
		slots[i] = int64(i + 1)
	}
	return slots
}
