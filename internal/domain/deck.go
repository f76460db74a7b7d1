package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	ErrDeckSize      = errors.New("deck must hold exactly 54 cards")
	ErrDuplicateCard = errors.New("deck holds a duplicate card")
)

// NewDeck returns the ordered 54-card deck: 13 ranks in four suits plus both jokers.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for r := Rank3; r <= Rank2; r++ {
		for s := SuitSpades; s <= SuitDiamonds; s++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	deck = append(deck,
		Card{Rank: RankBlackJoker, Suit: SuitNone},
		Card{Rank: RankRedJoker, Suit: SuitNone},
	)
	return deck
}

// NewShuffledDeck returns a uniformly shuffled deck drawn from rng.
func NewShuffledDeck(rng *rand.Rand) []Card {
	deck := NewDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

// Deal splits a full deck into three sorted 17-card hands and the 3 landlord cards.
// It fails when the deck is not exactly the 54-card set.
func Deal(deck []Card) ([PlayerCount][]Card, []Card, error) {
	var hands [PlayerCount][]Card
	if len(deck) != DeckSize {
		return hands, nil, fmt.Errorf("%w: got %d", ErrDeckSize, len(deck))
	}

	seen := make(map[Card]struct{}, DeckSize)
	for _, c := range deck {
		if _, dup := seen[c]; dup {
			return hands, nil, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[c] = struct{}{}
	}

	for i := range hands {
		hands[i] = make([]Card, 0, HandSize+ExtraCardCount)
	}
	for i := 0; i < PlayerCount*HandSize; i++ {
		hands[i%PlayerCount] = append(hands[i%PlayerCount], deck[i])
	}
	for i := range hands {
		SortHand(hands[i])
	}

	extra := append([]Card(nil), deck[PlayerCount*HandSize:]...)
	SortHand(extra)
	return hands, extra, nil
}

// SortHand orders a hand by ascending strength.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Less(cards[j])
	})
}
