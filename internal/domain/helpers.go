package domain

import "sort"

// LowestAvailableSeat returns the lowest free seat index, or -1 when all seats are taken.
func LowestAvailableSeat(players []*Player) int {
	taken := [PlayerCount]bool{}
	for _, p := range players {
		if p != nil && p.Seat >= 0 && p.Seat < PlayerCount {
			taken[p.Seat] = true
		}
	}
	for i, t := range taken {
		if !t {
			return i
		}
	}
	return -1
}

// RemoveCards removes the specified cards from a hand and returns the updated hand.
func RemoveCards(hand []Card, toRemove []Card) []Card {
	if len(toRemove) == 0 || len(hand) == 0 {
		return hand
	}

	removeCounts := make(map[Card]int, len(toRemove))
	for _, card := range toRemove {
		removeCounts[card]++
	}

	updated := make([]Card, 0, len(hand))
	for _, card := range hand {
		if count, ok := removeCounts[card]; ok && count > 0 {
			removeCounts[card] = count - 1
			continue
		}
		updated = append(updated, card)
	}

	return updated
}

// ContainsCards reports whether every card in cards is held in hand.
func ContainsCards(hand []Card, cards []Card) bool {
	held := make(map[Card]int, len(hand))
	for _, c := range hand {
		held[c]++
	}
	for _, c := range cards {
		if held[c] == 0 {
			return false
		}
		held[c]--
	}
	return true
}

// LowestCard returns the weakest card of a non-empty hand.
func LowestCard(hand []Card) (Card, bool) {
	if len(hand) == 0 {
		return Card{}, false
	}
	lowest := hand[0]
	for _, c := range hand[1:] {
		if c.Less(lowest) {
			lowest = c
		}
	}
	return lowest, true
}

// SortPlayers orders players by seat so that the slice index matches the seat.
func SortPlayers(players []*Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].Seat < players[j].Seat
	})
}
