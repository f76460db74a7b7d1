package domain

// BiddingState tracks the landlord auction.
type BiddingState struct {
	HighestBid    int               `json:"highest_bid"`
	HighestBidder int               `json:"highest_bidder"` // -1 until someone bids
	PassCount     int               `json:"pass_count"`
	Asked         int               `json:"asked"` // bid actions taken this deal
	Passed        [PlayerCount]bool `json:"passed"`
}

// Reset clears the auction for a fresh deal.
func (b *BiddingState) Reset() {
	*b = BiddingState{HighestBidder: -1}
}

// PlayRecord is one entry in the append-only play history.
type PlayRecord struct {
	Seat  int   `json:"seat"`
	Pass  bool  `json:"pass"`
	Auto  bool  `json:"auto"` // chosen by the timeout/AI policy
	Combo Combo `json:"combo"`
}

// Game is the authoritative aggregate for one session. Only the app service mutates it.
type Game struct {
	SessionID string
	Phase     Phase
	Players   []*Player // index == seat

	CurrentTurn int
	Bidding     BiddingState
	ExtraCards  []Card

	LastCombo         Combo
	LastPlayer        int
	ConsecutivePasses int
	History           []PlayRecord

	BombCount  int
	RocketUsed bool

	// Generation increases on every turn change; timer keys carry it so late
	// firings can be recognized.
	Generation uint64
	Redeals    int
	BaseScore  int64

	// Cancelled is set when the session ends without a result (join timeout or
	// too many redeals). The owner discards the game.
	Cancelled bool
	Report    *GameOverReport
}

// NewGame returns an empty session waiting for players.
func NewGame(sessionID string, baseScore int64) *Game {
	g := &Game{
		SessionID:  sessionID,
		Phase:      PhaseWaiting,
		LastPlayer: -1,
		BaseScore:  baseScore,
	}
	g.Bidding.Reset()
	return g
}

// PlayerByID returns the seated player with userID, or nil.
func (g *Game) PlayerByID(userID string) *Player {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// PlayerAt returns the player in seat, or nil.
func (g *Game) PlayerAt(seat int) *Player {
	if seat < 0 || seat >= len(g.Players) {
		return nil
	}
	return g.Players[seat]
}

// NextSeat returns the seat after seat in turn order.
func (g *Game) NextSeat(seat int) int {
	return (seat + 1) % PlayerCount
}

// Landlord returns the landlord once bidding has resolved.
func (g *Game) Landlord() *Player {
	for _, p := range g.Players {
		if p.Role == RoleLandlord {
			return p
		}
	}
	return nil
}

// IsLeading reports whether the current seat must open a new trick.
func (g *Game) IsLeading() bool {
	return g.LastCombo.Type == Invalid
}

// HumanCount returns the number of non-AI players seated.
func (g *Game) HumanCount() int {
	n := 0
	for _, p := range g.Players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

// Discarded returns every card played so far, in play order.
func (g *Game) Discarded() []Card {
	var out []Card
	for _, rec := range g.History {
		if !rec.Pass {
			out = append(out, rec.Combo.Cards...)
		}
	}
	return out
}

// CardTotal counts hands, discards and the landlord cards still set aside.
// Once dealt it must always equal DeckSize.
func (g *Game) CardTotal() int {
	total := len(g.Discarded())
	for _, p := range g.Players {
		total += len(p.Hand)
	}
	if g.Phase == PhaseBidding {
		total += len(g.ExtraCards)
	}
	return total
}
