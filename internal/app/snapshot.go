package app

import (
	"fmt"

	"doudizhu/internal/domain"
)

// SeatSnapshot is the public view of one seat plus, unless redacted, its hand.
type SeatSnapshot struct {
	UserID       string        `json:"user_id"`
	Seat         int           `json:"seat"`
	Role         domain.Role   `json:"role,omitempty"`
	IsAI         bool          `json:"is_ai"`
	CardCount    int           `json:"card_count"`
	CombosPlayed int           `json:"combos_played"`
	Hand         []domain.Card `json:"hand,omitempty"`
}

// Snapshot is a self-contained copy of a game. A full snapshot rebuilds the game
// through Restore; a redacted one is only for display.
type Snapshot struct {
	SessionID         string                 `json:"session_id"`
	Phase             domain.Phase           `json:"phase"`
	Seats             []SeatSnapshot         `json:"seats"`
	CurrentTurn       int                    `json:"current_turn"`
	Bidding           domain.BiddingState    `json:"bidding"`
	ExtraCards        []domain.Card          `json:"extra_cards,omitempty"`
	LastCombo         domain.Combo           `json:"last_combo"`
	LastPlayer        int                    `json:"last_player"`
	ConsecutivePasses int                    `json:"consecutive_passes"`
	History           []domain.PlayRecord    `json:"history,omitempty"`
	BombCount         int                    `json:"bomb_count"`
	RocketUsed        bool                   `json:"rocket_used"`
	Generation        uint64                 `json:"generation"`
	Redeals           int                    `json:"redeals"`
	BaseScore         int64                  `json:"base_score"`
	Cancelled         bool                   `json:"cancelled,omitempty"`
	Report            *domain.GameOverReport `json:"report,omitempty"`
	IsRedacted        bool                   `json:"redacted,omitempty"`
}

// TakeSnapshot deep-copies g.
func TakeSnapshot(g *domain.Game) Snapshot {
	snap := Snapshot{
		SessionID:         g.SessionID,
		Phase:             g.Phase,
		Seats:             make([]SeatSnapshot, 0, len(g.Players)),
		CurrentTurn:       g.CurrentTurn,
		Bidding:           g.Bidding,
		ExtraCards:        cloneCards(g.ExtraCards),
		LastCombo:         cloneCombo(g.LastCombo),
		LastPlayer:        g.LastPlayer,
		ConsecutivePasses: g.ConsecutivePasses,
		BombCount:         g.BombCount,
		RocketUsed:        g.RocketUsed,
		Generation:        g.Generation,
		Redeals:           g.Redeals,
		BaseScore:         g.BaseScore,
		Cancelled:         g.Cancelled,
	}
	for _, p := range g.Players {
		snap.Seats = append(snap.Seats, SeatSnapshot{
			UserID:       p.UserID,
			Seat:         p.Seat,
			Role:         p.Role,
			IsAI:         p.IsAI,
			CardCount:    len(p.Hand),
			CombosPlayed: p.CombosPlayed,
			Hand:         cloneCards(p.Hand),
		})
	}
	if len(g.History) > 0 {
		snap.History = make([]domain.PlayRecord, len(g.History))
		for i, rec := range g.History {
			rec.Combo = cloneCombo(rec.Combo)
			snap.History[i] = rec
		}
	}
	if g.Report != nil {
		report := *g.Report
		report.Deltas = make(map[string]int64, len(g.Report.Deltas))
		for k, v := range g.Report.Deltas {
			report.Deltas[k] = v
		}
		snap.Report = &report
	}
	return snap
}

// Redacted hides every hand except viewer's, and the landlord cards while they
// are still face down.
func (s Snapshot) Redacted(viewer string) Snapshot {
	out := s
	out.IsRedacted = true
	out.Seats = make([]SeatSnapshot, len(s.Seats))
	for i, seat := range s.Seats {
		if seat.UserID != viewer {
			seat.Hand = nil
		}
		out.Seats[i] = seat
	}
	if s.Phase == domain.PhaseBidding || s.Phase == domain.PhaseWaiting {
		out.ExtraCards = nil
	}
	return out
}

// Seat returns the seat entry for userID.
func (s Snapshot) Seat(userID string) (SeatSnapshot, bool) {
	for _, seat := range s.Seats {
		if seat.UserID == userID {
			return seat, true
		}
	}
	return SeatSnapshot{}, false
}

// Restore rebuilds a game from a full snapshot. Once cards are dealt the
// snapshot must account for all 54 cards exactly once.
func Restore(s Snapshot) (*domain.Game, error) {
	if s.IsRedacted {
		return nil, fmt.Errorf("restore %s: snapshot is redacted", s.SessionID)
	}
	switch s.Phase {
	case domain.PhaseWaiting, domain.PhaseBidding, domain.PhasePlaying, domain.PhaseGameOver:
	default:
		return nil, fmt.Errorf("restore %s: unknown phase %q", s.SessionID, s.Phase)
	}
	if len(s.Seats) > domain.PlayerCount {
		return nil, fmt.Errorf("restore %s: %d seats", s.SessionID, len(s.Seats))
	}

	g := &domain.Game{
		SessionID:         s.SessionID,
		Phase:             s.Phase,
		CurrentTurn:       s.CurrentTurn,
		Bidding:           s.Bidding,
		ExtraCards:        cloneCards(s.ExtraCards),
		LastCombo:         cloneCombo(s.LastCombo),
		LastPlayer:        s.LastPlayer,
		ConsecutivePasses: s.ConsecutivePasses,
		BombCount:         s.BombCount,
		RocketUsed:        s.RocketUsed,
		Generation:        s.Generation,
		Redeals:           s.Redeals,
		BaseScore:         s.BaseScore,
		Cancelled:         s.Cancelled,
	}
	for i, seat := range s.Seats {
		if seat.Seat != i {
			return nil, fmt.Errorf("restore %s: seat %d stored at index %d", s.SessionID, seat.Seat, i)
		}
		g.Players = append(g.Players, &domain.Player{
			UserID:       seat.UserID,
			Seat:         seat.Seat,
			Role:         seat.Role,
			Hand:         cloneCards(seat.Hand),
			IsAI:         seat.IsAI,
			CombosPlayed: seat.CombosPlayed,
		})
	}
	for _, rec := range s.History {
		rec.Combo = cloneCombo(rec.Combo)
		g.History = append(g.History, rec)
	}
	if s.Report != nil {
		report := *s.Report
		g.Report = &report
	}

	if g.Phase != domain.PhaseWaiting {
		if len(g.Players) != domain.PlayerCount {
			return nil, fmt.Errorf("restore %s: %w: %d players in %s", s.SessionID, ErrDealInvariant, len(g.Players), g.Phase)
		}
		if err := checkCards(g); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.SessionID, err)
		}
	}
	return g, nil
}

func checkCards(g *domain.Game) error {
	if total := g.CardTotal(); total != domain.DeckSize {
		return fmt.Errorf("%w: %d cards", ErrDealInvariant, total)
	}
	seen := make(map[domain.Card]bool, domain.DeckSize)
	all := g.Discarded()
	for _, p := range g.Players {
		all = append(all, p.Hand...)
	}
	if g.Phase == domain.PhaseBidding {
		all = append(all, g.ExtraCards...)
	}
	for _, c := range all {
		if seen[c] {
			return fmt.Errorf("%w: %s appears twice", ErrDealInvariant, c)
		}
		seen[c] = true
	}
	return nil
}

func cloneCards(cards []domain.Card) []domain.Card {
	if cards == nil {
		return nil
	}
	return append([]domain.Card(nil), cards...)
}

func cloneCombo(c domain.Combo) domain.Combo {
	c.Cards = cloneCards(c.Cards)
	if c.Body != nil {
		c.Body = append([]domain.Rank(nil), c.Body...)
	}
	return c
}
