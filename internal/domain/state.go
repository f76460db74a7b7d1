package domain

import (
	"fmt"
	"strings"
)

// Phase represents the lifecycle stage of a Dou Dizhu session.
type Phase string

const (
	// PhaseWaiting is the pre-game state where players can join.
	PhaseWaiting Phase = "waiting_players"
	// PhaseBidding is the auction for the landlord seat.
	PhaseBidding Phase = "bidding"
	// PhasePlaying indicates tricks are being played.
	PhasePlaying Phase = "playing"
	// PhaseGameOver is the terminal state after a hand is emptied.
	PhaseGameOver Phase = "game_over"
)

// Rank orders cards by Dou Dizhu strength, 3 lowest and the red joker highest.
type Rank int8

const (
	Rank3 Rank = iota
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
	Rank9
	Rank10
	RankJ
	RankQ
	RankK
	RankA
	Rank2
	RankBlackJoker
	RankRedJoker
)

var rankNames = [...]string{"3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A", "2", "BJ", "RJ"}

func (r Rank) String() string {
	if r < Rank3 || r > RankRedJoker {
		return fmt.Sprintf("Rank(%d)", int8(r))
	}
	return rankNames[r]
}

// IsJoker reports whether r is one of the two jokers.
func (r Rank) IsJoker() bool {
	return r == RankBlackJoker || r == RankRedJoker
}

// Suit is cosmetic; it only keeps the 52 ranked cards unique.
type Suit int8

const (
	SuitSpades Suit = iota
	SuitHearts
	SuitClubs
	SuitDiamonds
	SuitNone // jokers
)

var suitSymbols = [...]string{"♠", "♥", "♣", "♦", ""}

func (s Suit) String() string {
	if s < SuitSpades || s > SuitNone {
		return "?"
	}
	return suitSymbols[s]
}

// Card is a single immutable playing card.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// Less orders cards by rank, then suit.
func (c Card) Less(o Card) bool {
	if c.Rank != o.Rank {
		return c.Rank < o.Rank
	}
	return c.Suit < o.Suit
}

func (c Card) String() string {
	if c.Rank.IsJoker() {
		return c.Rank.String()
	}
	return c.Rank.String() + c.Suit.String()
}

// ParseCard reads the compact notation used by hosts and tests: "3S", "10H", "QD", "AC", "BJ", "RJ".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "BJ":
		return Card{Rank: RankBlackJoker, Suit: SuitNone}, nil
	case "RJ":
		return Card{Rank: RankRedJoker, Suit: SuitNone}, nil
	}
	if len(s) < 2 {
		return Card{}, fmt.Errorf("parse card %q: too short", s)
	}

	var suit Suit
	switch s[len(s)-1] {
	case 'S':
		suit = SuitSpades
	case 'H':
		suit = SuitHearts
	case 'C':
		suit = SuitClubs
	case 'D':
		suit = SuitDiamonds
	default:
		return Card{}, fmt.Errorf("parse card %q: unknown suit", s)
	}

	rankText := s[:len(s)-1]
	for r := Rank3; r <= Rank2; r++ {
		if rankNames[r] == rankText {
			return Card{Rank: r, Suit: suit}, nil
		}
	}
	return Card{}, fmt.Errorf("parse card %q: unknown rank", s)
}

// ParseCards parses a whitespace or comma separated card list.
func ParseCards(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Role is a player's side once bidding resolves.
type Role string

const (
	RoleUnassigned Role = ""
	RoleLandlord   Role = "landlord"
	RoleFarmer     Role = "farmer"
)

// Player holds state for a participant in the session.
type Player struct {
	UserID string
	Seat   int // 0-based, seat order is turn order
	Role   Role
	Hand   []Card
	IsAI   bool

	// CombosPlayed counts valid plays, used for spring detection.
	CombosPlayed int
}
