package app

import "doudizhu/internal/domain"

// AutoBid is the bid taken for an AI seat or on its deadline. It passes unless
// nobody has bid and every other seat already passed, so an all-AI table still
// finds a landlord.
func AutoBid(g *domain.Game, seat int) int {
	if g.Bidding.HighestBidder >= 0 {
		return 0
	}
	for other := 0; other < domain.PlayerCount; other++ {
		if other != seat && !g.Bidding.Passed[other] {
			return 0
		}
	}
	return domain.MinBid
}

// AutoPlay is the move taken for an AI seat or on its deadline: pass when
// passing is legal, otherwise lead the lowest single.
func AutoPlay(g *domain.Game, seat int) (cards []domain.Card, pass bool) {
	if !g.IsLeading() {
		return nil, true
	}
	p := g.PlayerAt(seat)
	if p == nil {
		return nil, true
	}
	lowest, ok := domain.LowestCard(p.Hand)
	if !ok {
		return nil, true
	}
	return []domain.Card{lowest}, false
}
