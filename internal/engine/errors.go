package engine

import "errors"

// Errors returned by engine operations, grouped by how callers should
// treat them: validation failures are safe to retry after correcting the
// condition, contention and superseded results are benign retry signals,
// and conflict errors mean the operation must be surfaced to an operator
// rather than retried.
var (
	// Validation.
	ErrNotActive       = errors.New("auction is not active")
	ErrAuctionPaused   = errors.New("auction is paused")
	ErrNotPaused       = errors.New("auction is not paused")
	ErrNoCurrentPlayer = errors.New("no player is up for bidding")
	ErrPlayerActive    = errors.New("a player is already up for bidding")
	ErrNoTeam          = errors.New("bidder does not own a team")
	ErrRosterFull      = errors.New("team roster is full")
	ErrPurseTooLow     = errors.New("purse cannot cover the next bid")
	ErrRoundNotFound   = errors.New("round not found")
	ErrRoundCompleted  = errors.New("round is already completed")
	ErrNoActiveRound   = errors.New("no active round")
	ErrNoBids          = errors.New("no bids to sell on")
	ErrUnknownAction   = errors.New("unknown control action")

	// Contention.
	ErrBidBusy     = errors.New("another bid is in flight")
	ErrControlBusy = errors.New("another control action is in progress")

	// Race-superseded.
	ErrNotExpired = errors.New("bidding window has not expired")
	ErrSuperseded = errors.New("superseded by a new bid")

	// Invariant violations.
	ErrSaleConflict  = errors.New("player already processed")
	ErrPurseConflict = errors.New("buyer can no longer afford the price")
)

// Kind buckets an engine error for transport-level mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindContention
	KindSuperseded
	KindInvariant
)

// Classify maps an error to its Kind. Unknown errors are internal.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotActive),
		errors.Is(err, ErrAuctionPaused),
		errors.Is(err, ErrNotPaused),
		errors.Is(err, ErrNoCurrentPlayer),
		errors.Is(err, ErrPlayerActive),
		errors.Is(err, ErrNoTeam),
		errors.Is(err, ErrRosterFull),
		errors.Is(err, ErrPurseTooLow),
		errors.Is(err, ErrRoundNotFound),
		errors.Is(err, ErrRoundCompleted),
		errors.Is(err, ErrNoActiveRound),
		errors.Is(err, ErrNoBids),
		errors.Is(err, ErrUnknownAction):
		return KindValidation
	case errors.Is(err, ErrBidBusy), errors.Is(err, ErrControlBusy):
		return KindContention
	case errors.Is(err, ErrNotExpired), errors.Is(err, ErrSuperseded):
		return KindSuperseded
	case errors.Is(err, ErrSaleConflict), errors.Is(err, ErrPurseConflict):
		return KindInvariant
	default:
		return KindInternal
	}
}
