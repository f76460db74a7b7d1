package app

import (
	"time"

	"doudizhu/internal/domain"
)

// EventKind identifies emitted domain events for host dispatch.
type EventKind string

const (
	EventPlayerJoined   EventKind = "player_joined"
	EventGameStarted    EventKind = "game_started"
	EventHandDealt      EventKind = "hand_dealt"
	EventBidPlaced      EventKind = "bid_placed"
	EventRedealt        EventKind = "redealt"
	EventLandlordChosen EventKind = "landlord_chosen"
	EventCardPlayed     EventKind = "card_played"
	EventTurnPassed     EventKind = "turn_passed"
	EventGameEnded      EventKind = "game_ended"
	EventGameCancelled  EventKind = "game_cancelled"
	EventGameReset      EventKind = "game_reset"
	EventTimerSet       EventKind = "timer_set"
	EventTimerCleared   EventKind = "timer_cleared"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type PlayerJoinedPayload struct {
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
	IsAI   bool   `json:"is_ai"`
}

type GameStartedPayload struct {
	Phase     domain.Phase `json:"phase"`
	FirstSeat int          `json:"first_seat"`
	Players   []string     `json:"players"` // by seat
}

type HandDealtPayload struct {
	UserID string        `json:"user_id"`
	Hand   []domain.Card `json:"hand"`
}

type BidPlacedPayload struct {
	UserID   string `json:"user_id"`
	Seat     int    `json:"seat"`
	Amount   int    `json:"amount"` // 0 is a pass
	Auto     bool   `json:"auto"`
	NextSeat int    `json:"next_seat"` // -1 once bidding resolved
}

type RedealtPayload struct {
	Redeals int `json:"redeals"`
}

type LandlordChosenPayload struct {
	UserID     string        `json:"user_id"`
	Seat       int           `json:"seat"`
	Bid        int           `json:"bid"`
	ExtraCards []domain.Card `json:"extra_cards"`
}

type CardPlayedPayload struct {
	UserID    string       `json:"user_id"`
	Seat      int          `json:"seat"`
	Combo     domain.Combo `json:"combo"`
	Remaining int          `json:"remaining"`
	Auto      bool         `json:"auto"`
	NextSeat  int          `json:"next_seat"` // -1 when the play ended the game
}

type TurnPassedPayload struct {
	UserID      string `json:"user_id"`
	Seat        int    `json:"seat"`
	Auto        bool   `json:"auto"`
	TrickClosed bool   `json:"trick_closed"`
	NextSeat    int    `json:"next_seat"`
}

type GameEndedPayload struct {
	Report domain.GameOverReport `json:"report"`
}

type GameCancelledPayload struct {
	Reason string `json:"reason"`
}

const (
	CancelReasonJoinTimeout = "join_timeout"
	CancelReasonNoLandlord  = "no_landlord"
)

// TimerPayload accompanies EventTimerSet and EventTimerCleared.
type TimerPayload struct {
	Key      TimerKey      `json:"key"`
	Duration time.Duration `json:"duration"` // zero for clears
}
