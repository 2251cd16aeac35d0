package engine

import "errors"

// Error classes. The service layer routes on these with errors.Is: the first
// three are rejected to the sender only, with no state mutation and no
// broadcast; ErrInconsistent must never be reachable through the public
// action surface and terminates the game when detected.
var (
	// ErrInvalidAction covers wrong turn, wrong phase, malformed card
	// selections and unknown targets.
	ErrInvalidAction = errors.New("invalid action")

	// ErrRuleViolation covers well-formed actions the rules forbid, such as
	// a five-cat claim against an empty discard pile.
	ErrRuleViolation = errors.New("rule violation")

	// ErrRaceRejected covers actions that lost a race, such as a counter
	// arriving after its window closed. Idempotent: no visible side effect
	// beyond the rejection.
	ErrRaceRejected = errors.New("too late")

	// ErrInconsistent flags an internal invariant violation.
	ErrInconsistent = errors.New("state inconsistency")
)
