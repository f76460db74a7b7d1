package app

import "errors"

// Player-facing errors reject a single action and never mutate the game.
var (
	ErrInvalidCombo   = errors.New("cards do not form a valid combination")
	ErrIllegalPlay    = errors.New("illegal play")
	ErrCannotBeat     = errors.New("combination does not beat the last play")
	ErrMustLead       = errors.New("trick leader cannot pass")
	ErrCardsNotInHand = errors.New("cards not in hand")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrWrongPhase     = errors.New("action not allowed in current phase")
	ErrSessionFull    = errors.New("session is full")
	ErrAlreadyJoined  = errors.New("player already joined")
	ErrUnknownPlayer  = errors.New("player not found")
	ErrInvalidBid     = errors.New("bid must be above the current bid and within 1..3")
	ErrTooFewHumans   = errors.New("not enough human players to start")
)

var (
	// ErrStaleTimeout marks a deadline that fired after its turn advanced. Callers drop it.
	ErrStaleTimeout = errors.New("timeout no longer applies")
	// ErrDealInvariant means the card total drifted from 54; the session cannot continue.
	ErrDealInvariant = errors.New("deal invariant violated")
	ErrNoSession     = errors.New("no active game for session")
)
