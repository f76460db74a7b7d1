package domain

// ComboType identifies one of the legal Dou Dizhu hand shapes.
type ComboType int

const (
	Invalid ComboType = iota
	Single
	Pair
	Trio
	TrioWithSingle
	TrioWithPair
	Straight       // 5+ consecutive singles
	DoubleStraight // 3+ consecutive pairs
	Airplane       // 2+ consecutive trios
	AirplaneWithSingles
	AirplaneWithPairs
	QuadWithSingles
	QuadWithPairs
	Bomb
	Rocket
)

var comboTypeNames = [...]string{
	"invalid", "single", "pair", "trio", "trio_plus_one", "trio_plus_pair",
	"straight", "double_straight", "triple_straight", "triple_straight_plus_singles",
	"triple_straight_plus_pairs", "quad_plus_two_singles", "quad_plus_two_pairs",
	"bomb", "rocket",
}

func (t ComboType) String() string {
	if t < Invalid || t > Rocket {
		return "unknown"
	}
	return comboTypeNames[t]
}

// Combo is a classified set of cards. The zero value (Type == Invalid) doubles as
// "no reference combo" when a seat leads a trick.
type Combo struct {
	Type    ComboType `json:"type"`
	Primary Rank      `json:"primary"` // comparison rank
	Length  int       `json:"length"`  // card count
	Body    []Rank    `json:"body"`    // ranks forming the shape, kickers excluded
	Cards   []Card    `json:"cards"`
}

// IsBomb reports whether c is a bomb or the rocket.
func (c Combo) IsBomb() bool {
	return c.Type == Bomb || c.Type == Rocket
}

// Rules toggles the optional kicker shapes.
type Rules struct {
	AllowAirplaneWithSingles bool
	AllowQuadWithSingles     bool
	AllowQuadWithPairs       bool
}

// DefaultRules enables every shape.
var DefaultRules = Rules{
	AllowAirplaneWithSingles: true,
	AllowQuadWithSingles:     true,
	AllowQuadWithPairs:       true,
}

// Classify analyzes cards under DefaultRules.
func Classify(cards []Card) Combo {
	return DefaultRules.Classify(cards)
}

// Classify returns the unique shape the cards form, or a Combo with Type Invalid.
func (r Rules) Classify(cards []Card) Combo {
	n := len(cards)
	if n == 0 {
		return Combo{}
	}

	sorted := append([]Card(nil), cards...)
	SortHand(sorted)

	var counts [RankRedJoker + 1]int
	for i, c := range sorted {
		if c.Rank < Rank3 || c.Rank > RankRedJoker {
			return Combo{}
		}
		if i > 0 && sorted[i-1] == c {
			return Combo{} // same physical card twice
		}
		counts[c.Rank]++
	}

	// Ranks grouped by multiplicity, ascending.
	var ones, twos, threes, fours []Rank
	for rank := Rank3; rank <= RankRedJoker; rank++ {
		switch counts[rank] {
		case 1:
			ones = append(ones, rank)
		case 2:
			twos = append(twos, rank)
		case 3:
			threes = append(threes, rank)
		case 4:
			fours = append(fours, rank)
		}
	}

	build := func(t ComboType, body []Rank) Combo {
		return Combo{Type: t, Primary: body[0], Length: n, Body: body, Cards: sorted}
	}

	switch {
	case n == 1:
		return build(Single, ones)
	case n == 2 && len(ones) == 2 && ones[0] == RankBlackJoker && ones[1] == RankRedJoker:
		return Combo{Type: Rocket, Primary: RankRedJoker, Length: n, Body: ones, Cards: sorted}
	case n == 2 && len(twos) == 1:
		return build(Pair, twos)
	case n == 3 && len(threes) == 1:
		return build(Trio, threes)
	case n == 4 && len(fours) == 1:
		return build(Bomb, fours)
	case n == 4 && len(threes) == 1 && len(ones) == 1:
		return build(TrioWithSingle, threes)
	case n == 5 && len(threes) == 1 && len(twos) == 1:
		return build(TrioWithPair, threes)
	}

	if len(ones) == n && n >= MinStraightLen && consecutive(ones) {
		return build(Straight, ones)
	}
	if len(twos)*2 == n && len(twos) >= MinDoubleStraightLen && consecutive(twos) {
		return build(DoubleStraight, twos)
	}
	if len(threes)*3 == n && len(threes) >= MinAirplaneLen && consecutive(threes) {
		return build(Airplane, threes)
	}

	if len(fours) == 1 {
		if n == 6 && len(ones) == 2 && r.AllowQuadWithSingles {
			return build(QuadWithSingles, fours)
		}
		if n == 8 && len(twos) == 2 && r.AllowQuadWithPairs {
			return build(QuadWithPairs, fours)
		}
		return Combo{}
	}

	if k := len(threes); k >= MinAirplaneLen && consecutive(threes) {
		// Kickers are the only remaining groups; counts guarantee they are pairwise
		// distinct and outside the body.
		if n == 4*k && len(ones) == k && r.AllowAirplaneWithSingles {
			return build(AirplaneWithSingles, threes)
		}
		if n == 5*k && len(twos) == k {
			return build(AirplaneWithPairs, threes)
		}
	}

	return Combo{}
}

// consecutive reports whether ranks form an unbroken run that stops at or below Ace.
func consecutive(ranks []Rank) bool {
	if len(ranks) == 0 || ranks[len(ranks)-1] > RankA {
		return false
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i] != ranks[i-1]+1 {
			return false
		}
	}
	return true
}

// Beats decides whether candidate may be played over reference. A reference of
// type Invalid means the candidate is leading a trick.
func Beats(candidate, reference Combo) bool {
	if candidate.Type == Invalid {
		return false
	}
	if reference.Type == Invalid {
		return true
	}

	switch {
	case reference.Type == Rocket:
		return false
	case candidate.Type == Rocket:
		return true
	case candidate.Type == Bomb && reference.Type == Bomb:
		return candidate.Primary > reference.Primary
	case candidate.Type == Bomb:
		return true
	case reference.Type == Bomb:
		return false
	}

	return candidate.Type == reference.Type &&
		candidate.Length == reference.Length &&
		candidate.Primary > reference.Primary
}
