package domain

const (
	PlayerCount    = 3
	DeckSize       = 54
	HandSize       = 17
	ExtraCardCount = 3

	MinBid = 1
	MaxBid = 3

	MinStraightLen       = 5
	MinDoubleStraightLen = 3 // pairs
	MinAirplaneLen       = 2 // trios
)
