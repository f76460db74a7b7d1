package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"doudizhu/internal/domain"
)

// Options tunes the state machine. Zero fields fall back to the package defaults.
type Options struct {
	BidTimeout  time.Duration
	PlayTimeout time.Duration
	JoinTimeout time.Duration
	AITurnDelay time.Duration

	// MaxRedeals caps consecutive all-pass redeals before the game is cancelled.
	// Negative disables the cap.
	MaxRedeals int
	// MinHumansToStart gates StartManually. Negative allows a table of AI only.
	MinHumansToStart int
	BaseScore        int64
	Rules            domain.Rules

	// AIName returns the user ID for an AI backfilling seat in session.
	AIName func(sessionID string, seat int) string
}

// DefaultOptions returns the stock timeouts with every optional combo enabled.
func DefaultOptions() Options {
	return Options{
		BidTimeout:       DefaultBidTimeout,
		PlayTimeout:      DefaultPlayTimeout,
		JoinTimeout:      DefaultJoinTimeout,
		AITurnDelay:      DefaultAITurnDelay,
		MaxRedeals:       DefaultMaxRedeals,
		MinHumansToStart: DefaultMinHumansToStart,
		BaseScore:        DefaultBaseScore,
		Rules:            domain.DefaultRules,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BidTimeout <= 0 {
		o.BidTimeout = d.BidTimeout
	}
	if o.PlayTimeout <= 0 {
		o.PlayTimeout = d.PlayTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = d.JoinTimeout
	}
	if o.AITurnDelay <= 0 {
		o.AITurnDelay = d.AITurnDelay
	}
	if o.MaxRedeals == 0 {
		o.MaxRedeals = d.MaxRedeals
	}
	if o.MinHumansToStart == 0 {
		o.MinHumansToStart = d.MinHumansToStart
	}
	if o.BaseScore <= 0 {
		o.BaseScore = d.BaseScore
	}
	if o.AIName == nil {
		o.AIName = defaultAIName
	}
	return o
}

func defaultAIName(sessionID string, seat int) string {
	return fmt.Sprintf("ai:%s:%d", sessionID, seat)
}

// Service contains Dou Dizhu use-cases operating on domain state.
// It is not safe for concurrent use on the same game; callers serialize per session.
// Different games may share one Service.
type Service struct {
	rngMu sync.Mutex
	rng   *rand.Rand
	opts  Options

	newDeck func() []domain.Card
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand, opts Options) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Service{rng: rng, opts: opts.withDefaults()}
	s.newDeck = s.shuffledDeck
	return s
}

func (s *Service) shuffledDeck() []domain.Card {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.NewShuffledDeck(s.rng)
}

// Options returns the effective options after defaults were applied.
func (s *Service) Options() Options {
	return s.opts
}

// NewGame creates a session waiting for players and arms its join deadline.
func (s *Service) NewGame(sessionID string) (*domain.Game, []Event) {
	g := domain.NewGame(sessionID, s.opts.BaseScore)
	key, _ := s.ActiveTimer(g)
	return g, []Event{{
		Kind:    EventTimerSet,
		Payload: TimerPayload{Key: key, Duration: s.timerDuration(g, key)},
	}}
}

// Join seats userID in the lowest free seat. The third join deals and opens bidding.
func (s *Service) Join(g *domain.Game, userID string) ([]Event, error) {
	if g.PlayerByID(userID) != nil {
		return nil, ErrAlreadyJoined
	}
	seat := domain.LowestAvailableSeat(g.Players)
	if seat < 0 {
		return nil, ErrSessionFull
	}
	if g.Phase != domain.PhaseWaiting || g.Cancelled {
		return nil, ErrWrongPhase
	}

	return s.withTimers(g, func() ([]Event, error) {
		g.Players = append(g.Players, &domain.Player{UserID: userID, Seat: seat})
		events := []Event{{
			Kind:    EventPlayerJoined,
			Payload: PlayerJoinedPayload{UserID: userID, Seat: seat},
		}}
		if len(g.Players) < domain.PlayerCount {
			return events, nil
		}
		dealt, err := s.startBidding(g)
		if err != nil {
			return nil, err
		}
		return append(events, dealt...), nil
	})
}

// StartManually backfills empty seats with AI players and opens bidding.
func (s *Service) StartManually(g *domain.Game) ([]Event, error) {
	if g.Phase != domain.PhaseWaiting || g.Cancelled {
		return nil, ErrWrongPhase
	}
	if g.HumanCount() < s.opts.MinHumansToStart {
		return nil, ErrTooFewHumans
	}

	return s.withTimers(g, func() ([]Event, error) {
		var events []Event
		for len(g.Players) < domain.PlayerCount {
			seat := domain.LowestAvailableSeat(g.Players)
			id := s.opts.AIName(g.SessionID, seat)
			g.Players = append(g.Players, &domain.Player{UserID: id, Seat: seat, IsAI: true})
			events = append(events, Event{
				Kind:    EventPlayerJoined,
				Payload: PlayerJoinedPayload{UserID: id, Seat: seat, IsAI: true},
			})
		}
		dealt, err := s.startBidding(g)
		if err != nil {
			return nil, err
		}
		return append(events, dealt...), nil
	})
}

// Bid records a bid (1..3) or a pass (0) for the seat on turn.
func (s *Service) Bid(g *domain.Game, userID string, amount int) ([]Event, error) {
	p, err := s.actor(g, userID, domain.PhaseBidding)
	if err != nil {
		return nil, err
	}
	if amount != 0 && (amount < domain.MinBid || amount > domain.MaxBid || amount <= g.Bidding.HighestBid) {
		return nil, ErrInvalidBid
	}
	return s.withTimers(g, func() ([]Event, error) {
		return s.bid(g, p, amount, false)
	})
}

// Play plays cards for the seat on turn.
func (s *Service) Play(g *domain.Game, userID string, cards []domain.Card) ([]Event, error) {
	p, err := s.actor(g, userID, domain.PhasePlaying)
	if err != nil {
		return nil, err
	}
	combo, err := s.validatePlay(g, p, cards)
	if err != nil {
		return nil, err
	}
	return s.withTimers(g, func() ([]Event, error) {
		return s.play(g, p, combo, false), nil
	})
}

// Pass passes the turn. The trick leader may not pass.
func (s *Service) Pass(g *domain.Game, userID string) ([]Event, error) {
	p, err := s.actor(g, userID, domain.PhasePlaying)
	if err != nil {
		return nil, err
	}
	if g.IsLeading() {
		return nil, fmt.Errorf("%w: %w", ErrIllegalPlay, ErrMustLead)
	}
	return s.withTimers(g, func() ([]Event, error) {
		return s.pass(g, p, false), nil
	})
}

// Timeout applies the deadline identified by key. Keys that no longer match the
// game's active deadline return ErrStaleTimeout and change nothing.
// A bid deadline passes for humans; an AI seat bids AutoBid instead, so a table
// of AI still finds a landlord.
func (s *Service) Timeout(g *domain.Game, key TimerKey) ([]Event, error) {
	active, ok := s.ActiveTimer(g)
	if !ok || active != key {
		return nil, ErrStaleTimeout
	}

	return s.withTimers(g, func() ([]Event, error) {
		if key.Kind == TimerJoin {
			return s.cancel(g, CancelReasonJoinTimeout), nil
		}

		p := g.PlayerAt(key.Seat)
		if p == nil {
			return nil, ErrUnknownPlayer
		}
		if key.Kind == TimerBid {
			amount := 0
			if p.IsAI {
				amount = AutoBid(g, p.Seat)
			}
			return s.bid(g, p, amount, true)
		}

		cards, pass := AutoPlay(g, p.Seat)
		if pass {
			return s.pass(g, p, true), nil
		}
		combo, err := s.validatePlay(g, p, cards)
		if err != nil {
			return nil, err
		}
		return s.play(g, p, combo, true), nil
	})
}

// ResetForReplay returns a finished game to waiting_players with no players seated.
func (s *Service) ResetForReplay(g *domain.Game) ([]Event, error) {
	if g.Phase != domain.PhaseGameOver {
		return nil, ErrWrongPhase
	}
	return s.withTimers(g, func() ([]Event, error) {
		generation := g.Generation + 1
		*g = *domain.NewGame(g.SessionID, s.opts.BaseScore)
		g.Generation = generation
		return []Event{{Kind: EventGameReset, Payload: GameStartedPayload{Phase: g.Phase, FirstSeat: -1}}}, nil
	})
}

func (s *Service) actor(g *domain.Game, userID string, phase domain.Phase) (*domain.Player, error) {
	if g.Phase != phase || g.Cancelled {
		return nil, ErrWrongPhase
	}
	p := g.PlayerByID(userID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	if p.Seat != g.CurrentTurn {
		return nil, ErrNotYourTurn
	}
	return p, nil
}

func (s *Service) advanceTurn(g *domain.Game, seat int) {
	g.CurrentTurn = seat
	g.Generation++
}

// deal shuffles a fresh deck into the seated players' hands.
func (s *Service) deal(g *domain.Game) ([]Event, error) {
	hands, extra, err := domain.Deal(s.newDeck())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDealInvariant, err)
	}
	events := make([]Event, 0, len(g.Players))
	for _, p := range g.Players {
		p.Hand = hands[p.Seat]
		p.Role = domain.RoleUnassigned
		p.CombosPlayed = 0
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{UserID: p.UserID, Hand: append([]domain.Card(nil), p.Hand...)},
			Recipients: []string{p.UserID},
		})
	}
	g.ExtraCards = extra
	g.Bidding.Reset()
	if total := g.CardTotal(); total != domain.DeckSize {
		return nil, fmt.Errorf("%w: %d cards after deal", ErrDealInvariant, total)
	}
	return events, nil
}

func (s *Service) startBidding(g *domain.Game) ([]Event, error) {
	domain.SortPlayers(g.Players)
	g.Phase = domain.PhaseBidding
	g.Redeals = 0
	dealt, err := s.deal(g)
	if err != nil {
		return nil, err
	}
	s.advanceTurn(g, 0)

	ids := make([]string, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.UserID
	}
	events := []Event{{
		Kind:    EventGameStarted,
		Payload: GameStartedPayload{Phase: g.Phase, FirstSeat: g.CurrentTurn, Players: ids},
	}}
	return append(events, dealt...), nil
}

func (s *Service) bid(g *domain.Game, p *domain.Player, amount int, auto bool) ([]Event, error) {
	b := &g.Bidding
	b.Asked++
	if amount == 0 {
		b.Passed[p.Seat] = true
		b.PassCount++
	} else {
		b.HighestBid = amount
		b.HighestBidder = p.Seat
	}

	placed := BidPlacedPayload{UserID: p.UserID, Seat: p.Seat, Amount: amount, Auto: auto, NextSeat: -1}
	switch {
	case b.HighestBid == domain.MaxBid,
		b.HighestBidder >= 0 && b.PassCount == domain.PlayerCount-1:
		events := []Event{{Kind: EventBidPlaced, Payload: placed}}
		return append(events, s.grantLandlord(g, g.PlayerAt(b.HighestBidder))...), nil
	case b.PassCount == domain.PlayerCount:
		events := []Event{{Kind: EventBidPlaced, Payload: placed}}
		redealt, err := s.redeal(g)
		if err != nil {
			return nil, err
		}
		return append(events, redealt...), nil
	}

	next := g.NextSeat(p.Seat)
	for b.Passed[next] {
		next = g.NextSeat(next)
	}
	s.advanceTurn(g, next)
	placed.NextSeat = next
	return []Event{{Kind: EventBidPlaced, Payload: placed}}, nil
}

func (s *Service) redeal(g *domain.Game) ([]Event, error) {
	g.Redeals++
	if s.opts.MaxRedeals >= 0 && g.Redeals > s.opts.MaxRedeals {
		return s.cancel(g, CancelReasonNoLandlord), nil
	}
	dealt, err := s.deal(g)
	if err != nil {
		return nil, err
	}
	s.advanceTurn(g, 0)
	events := []Event{{Kind: EventRedealt, Payload: RedealtPayload{Redeals: g.Redeals}}}
	return append(events, dealt...), nil
}

func (s *Service) grantLandlord(g *domain.Game, landlord *domain.Player) []Event {
	for _, p := range g.Players {
		p.Role = domain.RoleFarmer
	}
	landlord.Role = domain.RoleLandlord
	landlord.Hand = append(landlord.Hand, g.ExtraCards...)
	domain.SortHand(landlord.Hand)

	g.Phase = domain.PhasePlaying
	g.LastCombo = domain.Combo{}
	g.LastPlayer = -1
	g.ConsecutivePasses = 0
	g.Redeals = 0
	s.advanceTurn(g, landlord.Seat)

	return []Event{
		{
			Kind: EventLandlordChosen,
			Payload: LandlordChosenPayload{
				UserID:     landlord.UserID,
				Seat:       landlord.Seat,
				Bid:        g.Bidding.HighestBid,
				ExtraCards: append([]domain.Card(nil), g.ExtraCards...),
			},
		},
		{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{UserID: landlord.UserID, Hand: append([]domain.Card(nil), landlord.Hand...)},
			Recipients: []string{landlord.UserID},
		},
	}
}

func (s *Service) validatePlay(g *domain.Game, p *domain.Player, cards []domain.Card) (domain.Combo, error) {
	if len(cards) == 0 {
		return domain.Combo{}, ErrInvalidCombo
	}
	if !domain.ContainsCards(p.Hand, cards) {
		return domain.Combo{}, fmt.Errorf("%w: %w", ErrIllegalPlay, ErrCardsNotInHand)
	}
	combo := s.opts.Rules.Classify(cards)
	if combo.Type == domain.Invalid {
		return domain.Combo{}, ErrInvalidCombo
	}
	if !domain.Beats(combo, g.LastCombo) {
		return domain.Combo{}, fmt.Errorf("%w: %w", ErrIllegalPlay, ErrCannotBeat)
	}
	return combo, nil
}

func (s *Service) play(g *domain.Game, p *domain.Player, combo domain.Combo, auto bool) []Event {
	p.Hand = domain.RemoveCards(p.Hand, combo.Cards)
	p.CombosPlayed++
	g.LastCombo = combo
	g.LastPlayer = p.Seat
	g.ConsecutivePasses = 0
	g.History = append(g.History, domain.PlayRecord{Seat: p.Seat, Auto: auto, Combo: combo})
	switch combo.Type {
	case domain.Bomb:
		g.BombCount++
	case domain.Rocket:
		g.RocketUsed = true
	}

	played := CardPlayedPayload{
		UserID:    p.UserID,
		Seat:      p.Seat,
		Combo:     combo,
		Remaining: len(p.Hand),
		Auto:      auto,
		NextSeat:  -1,
	}
	if len(p.Hand) == 0 {
		// Turn stays on the winner; nothing is pending once the game is over.
		g.Phase = domain.PhaseGameOver
		report := g.Settle(p.Seat)
		g.Report = &report
		return []Event{
			{Kind: EventCardPlayed, Payload: played},
			{Kind: EventGameEnded, Payload: GameEndedPayload{Report: report}},
		}
	}

	s.advanceTurn(g, g.NextSeat(p.Seat))
	played.NextSeat = g.CurrentTurn
	return []Event{{Kind: EventCardPlayed, Payload: played}}
}

func (s *Service) pass(g *domain.Game, p *domain.Player, auto bool) []Event {
	g.ConsecutivePasses++
	g.History = append(g.History, domain.PlayRecord{Seat: p.Seat, Pass: true, Auto: auto})

	passed := TurnPassedPayload{UserID: p.UserID, Seat: p.Seat, Auto: auto}
	if g.ConsecutivePasses >= domain.PlayerCount-1 {
		g.LastCombo = domain.Combo{}
		g.ConsecutivePasses = 0
		passed.TrickClosed = true
		s.advanceTurn(g, g.LastPlayer)
	} else {
		s.advanceTurn(g, g.NextSeat(p.Seat))
	}
	passed.NextSeat = g.CurrentTurn
	return []Event{{Kind: EventTurnPassed, Payload: passed}}
}

func (s *Service) cancel(g *domain.Game, reason string) []Event {
	g.Cancelled = true
	return []Event{{Kind: EventGameCancelled, Payload: GameCancelledPayload{Reason: reason}}}
}
