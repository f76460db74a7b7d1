package domain

const (
	ScoreMultiplierBomb       = 2
	ScoreMultiplierRocket     = 2
	ScoreMultiplierSpring     = 2
	ScoreMultiplierAntiSpring = 2
)

// GameOverReport is the terminal settlement of a game.
type GameOverReport struct {
	WinningRole Role             `json:"winning_role"`
	WinnerSeat  int              `json:"winner_seat"`
	Score       int64            `json:"score"`
	Deltas      map[string]int64 `json:"deltas"` // userID -> score change
	BombCount   int              `json:"bomb_count"`
	RocketUsed  bool             `json:"rocket_used"`
	Spring      bool             `json:"spring"`
	AntiSpring  bool             `json:"anti_spring"`
}

// Settle computes the report for a game won by the player in winnerSeat.
// Each winner gains the final score and each loser pays it; farmers do not split.
func (g *Game) Settle(winnerSeat int) GameOverReport {
	winner := g.PlayerAt(winnerSeat)
	report := GameOverReport{
		WinnerSeat: winnerSeat,
		BombCount:  g.BombCount,
		RocketUsed: g.RocketUsed,
		Deltas:     make(map[string]int64, len(g.Players)),
	}
	if winner == nil {
		return report
	}
	report.WinningRole = winner.Role

	farmerPlays, landlordPlays := 0, 0
	for _, p := range g.Players {
		if p.Role == RoleLandlord {
			landlordPlays += p.CombosPlayed
		} else {
			farmerPlays += p.CombosPlayed
		}
	}
	report.Spring = winner.Role == RoleLandlord && farmerPlays == 0
	report.AntiSpring = winner.Role == RoleFarmer && landlordPlays <= 1

	score := g.BaseScore
	for i := 0; i < g.BombCount; i++ {
		score *= ScoreMultiplierBomb
	}
	if g.RocketUsed {
		score *= ScoreMultiplierRocket
	}
	if report.Spring {
		score *= ScoreMultiplierSpring
	}
	if report.AntiSpring {
		score *= ScoreMultiplierAntiSpring
	}
	report.Score = score

	for _, p := range g.Players {
		if p.Role == winner.Role {
			report.Deltas[p.UserID] = score
		} else {
			report.Deltas[p.UserID] = -score
		}
	}
	return report
}
