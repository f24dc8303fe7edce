package models

import (
	"time"
)

// TokenEventType represents the kind of ledger mutation
type TokenEventType string

const (
	TokenEventMint             TokenEventType = "mint"
	TokenEventStake            TokenEventType = "stake"
	TokenEventBetFailureRefund TokenEventType = "bet_failure_refund"
	TokenEventHotOrNotPayout   TokenEventType = "hot_or_not_payout"
	TokenEventTransferIn       TokenEventType = "transfer_in"
	TokenEventTransferOut      TokenEventType = "transfer_out"
	TokenEventWithdraw         TokenEventType = "withdraw"
)

// TokenEventReason qualifies an event within its type
type TokenEventReason string

const (
	ReasonNewUserSignup     TokenEventReason = "new_user_signup"
	ReasonReferralReward    TokenEventReason = "referral_reward"
	ReasonBetOnPost         TokenEventReason = "bet_on_post"
	ReasonBetCallFailed     TokenEventReason = "bet_call_failed"
	ReasonBettingClosed     TokenEventReason = "betting_closed"
	ReasonWinnings          TokenEventReason = "winnings"
	ReasonDrawRefund        TokenEventReason = "draw_refund"
	ReasonCreatorCommission TokenEventReason = "creator_commission"
)

// TokenEvent is an immutable record of a single balance mutation. Every change
// to the ledger goes through exactly one of these; there is no silent mutation
// path.
type TokenEvent struct {
	ID           int64            `db:"id"`
	EventType    TokenEventType   `db:"event_type"`
	Reason       TokenEventReason `db:"reason"`
	Amount       int64            `db:"amount"`
	ChangeAmount int64            `db:"change_amount"`
	BalanceAfter int64            `db:"balance_after"`
	Details      map[string]any   `db:"details"`
	CreatedAt    time.Time        `db:"created_at"`
}

// TokenBalance holds the running counters derived from the event log. The
// counters are maintained incrementally and are never recomputed by replaying
// the (possibly truncated) history.
type TokenBalance struct {
	Balance     int64     `db:"balance"`
	NetAirdrop  int64     `db:"net_airdrop"`
	NetEarnings int64     `db:"net_earnings"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// credits reports whether the event type adds to the balance.
func (t TokenEventType) credits() bool {
	switch t {
	case TokenEventMint, TokenEventBetFailureRefund, TokenEventHotOrNotPayout, TokenEventTransferIn:
		return true
	}
	return false
}

// Apply mutates the balance counters according to the event and fills in the
// event's ChangeAmount and BalanceAfter. Callers validate sufficiency before
// emitting debit events; a debit that would take the balance negative returns
// ErrLedgerUnderflow and leaves the counters untouched.
func (b *TokenBalance) Apply(ev *TokenEvent) error {
	if ev.Amount < 0 {
		return ErrLedgerUnderflow
	}

	if ev.EventType.credits() {
		ev.ChangeAmount = ev.Amount
	} else {
		if b.Balance < ev.Amount {
			return ErrLedgerUnderflow
		}
		ev.ChangeAmount = -ev.Amount
	}

	b.Balance += ev.ChangeAmount
	ev.BalanceAfter = b.Balance

	switch ev.EventType {
	case TokenEventMint:
		b.NetAirdrop += ev.Amount
	case TokenEventHotOrNotPayout:
		// A draw refund returns the stake; it is not income.
		if ev.Reason != ReasonDrawRefund {
			b.NetEarnings += ev.Amount
		}
	}

	return nil
}

// Withdrawable returns the spendable subset of the balance. Airdropped
// principal is excluded until it has been earned back through winnings.
func (b *TokenBalance) Withdrawable() int64 {
	locked := b.NetAirdrop - b.NetEarnings
	if locked < 0 {
		locked = 0
	}
	if b.Balance <= locked {
		return 0
	}
	return b.Balance - locked
}
