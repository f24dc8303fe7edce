package models

import "errors"

// Client-facing error taxonomy. Every error a caller can branch on is one of
// these sentinels so handlers and remote nodes map them deterministically.
var (
	// ErrUserNotLoggedIn is returned when the caller is anonymous.
	ErrUserNotLoggedIn = errors.New("user not logged in")

	// ErrUnauthorized is returned when the caller is not the node owner.
	ErrUnauthorized = errors.New("caller is not the node owner")

	// ErrUserPrincipalNotSet is returned when the node has no registered owner.
	ErrUserPrincipalNotSet = errors.New("node owner principal not set")

	// ErrInsufficientBalance is returned when the ledger balance cannot cover a debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyParticipated is returned when the bettor already has a bet on the post.
	ErrAlreadyParticipated = errors.New("user already participated in this post")

	// ErrBettingClosed is returned when the post's betting horizon has elapsed
	// or the post never opted into betting.
	ErrBettingClosed = errors.New("betting is closed for this post")

	// ErrPostNotFound is returned when the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrPostNodeCallFailed is returned when the call to the post-owner node
	// failed at the transport level. The stake has been refunded; the caller
	// may retry the whole bet.
	ErrPostNodeCallFailed = errors.New("call to post-owner node failed")

	// ErrLedgerUnderflow signals a debit that was not validated by its caller.
	// It is an internal invariant violation, never a user input problem.
	ErrLedgerUnderflow = errors.New("ledger balance underflow")
)

// Wire codes for the error taxonomy. Used by the node transport so a remote
// caller receives the same sentinel the local caller would.
const (
	ErrCodeUserNotLoggedIn     = "USER_NOT_LOGGED_IN"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeUserPrincipalNotSet = "USER_PRINCIPAL_NOT_SET"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeAlreadyParticipated = "ALREADY_PARTICIPATED"
	ErrCodeBettingClosed       = "BETTING_CLOSED"
	ErrCodePostNotFound        = "POST_NOT_FOUND"
	ErrCodePostNodeCallFailed  = "POST_NODE_CALL_FAILED"
	ErrCodeInternal            = "INTERNAL"
)

var errorCodes = map[string]error{
	ErrCodeUserNotLoggedIn:     ErrUserNotLoggedIn,
	ErrCodeUnauthorized:        ErrUnauthorized,
	ErrCodeUserPrincipalNotSet: ErrUserPrincipalNotSet,
	ErrCodeInsufficientBalance: ErrInsufficientBalance,
	ErrCodeAlreadyParticipated: ErrAlreadyParticipated,
	ErrCodeBettingClosed:       ErrBettingClosed,
	ErrCodePostNotFound:        ErrPostNotFound,
	ErrCodePostNodeCallFailed:  ErrPostNodeCallFailed,
}

// ErrorCode maps an error to its wire code. Unrecognized errors map to
// ErrCodeInternal so internal failures never leak as opaque strings.
func ErrorCode(err error) string {
	for code, sentinel := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrCodeInternal
}

// ErrorFromCode maps a wire code back to its sentinel. Unknown codes map to
// ErrPostNodeCallFailed since the caller cannot act on them more precisely.
func ErrorFromCode(code string) error {
	if err, ok := errorCodes[code]; ok {
		return err
	}
	return ErrPostNodeCallFailed
}
