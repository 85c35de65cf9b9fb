package game

import "errors"

// Error taxonomy for the round state machine. Each kind is a distinct
// sentinel so callers can react appropriately (refresh stale state vs.
// reject a tampered request).
var (
	ErrInvalidConfiguration = errors.New("invalid round configuration")
	ErrRoundNotFound        = errors.New("round not found")
	ErrNotOwner             = errors.New("round belongs to another player")
	ErrRoundNotActive       = errors.New("round is not active")
	ErrTileOutOfRange       = errors.New("tile index out of range")
	ErrTileAlreadyRevealed  = errors.New("tile already revealed")
	ErrNothingToCollect     = errors.New("nothing to collect")
)
