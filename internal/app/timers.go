package app

import (
	"fmt"
	"time"

	"doudizhu/internal/domain"
)

// TimerKind names which deadline a key refers to.
type TimerKind string

const (
	TimerJoin TimerKind = "join"
	TimerBid  TimerKind = "bid"
	TimerPlay TimerKind = "play"
)

// TimerKey identifies one deadline. Generation pins it to a single turn so a
// firing that arrives after the turn advanced is recognized as stale.
type TimerKey struct {
	SessionID  string    `json:"session_id"`
	Kind       TimerKind `json:"kind"`
	Seat       int       `json:"seat"` // -1 for the join deadline
	Generation uint64    `json:"generation"`
}

// Name is the scheduler job name. A session has at most one live deadline, so
// the generation is left out and a new Set replaces the previous job.
func (k TimerKey) Name() string {
	return fmt.Sprintf("job_%s_timeout_%s", k.Kind, k.SessionID)
}

func (k TimerKey) String() string {
	return fmt.Sprintf("%s#%d(seat %d)", k.Name(), k.Generation, k.Seat)
}

// ActiveTimer returns the deadline the game is currently waiting on, if any.
func (s *Service) ActiveTimer(g *domain.Game) (TimerKey, bool) {
	if g.Cancelled {
		return TimerKey{}, false
	}
	key := TimerKey{SessionID: g.SessionID, Seat: g.CurrentTurn, Generation: g.Generation}
	switch g.Phase {
	case domain.PhaseWaiting:
		key.Kind, key.Seat = TimerJoin, -1
	case domain.PhaseBidding:
		key.Kind = TimerBid
	case domain.PhasePlaying:
		key.Kind = TimerPlay
	default:
		return TimerKey{}, false
	}
	return key, true
}

func (s *Service) timerDuration(g *domain.Game, key TimerKey) time.Duration {
	if key.Kind == TimerJoin {
		return s.opts.JoinTimeout
	}
	if p := g.PlayerAt(key.Seat); p != nil && p.IsAI {
		return s.opts.AITurnDelay
	}
	if key.Kind == TimerBid {
		return s.opts.BidTimeout
	}
	return s.opts.PlayTimeout
}

// withTimers runs a mutation and brackets its events with the deadline changes it
// caused: the old deadline is cleared first, the new one is set last.
func (s *Service) withTimers(g *domain.Game, mutate func() ([]Event, error)) ([]Event, error) {
	prev, hadPrev := s.ActiveTimer(g)
	events, err := mutate()
	if err != nil {
		return nil, err
	}
	next, hasNext := s.ActiveTimer(g)
	if hadPrev == hasNext && prev == next {
		return events, nil
	}

	out := make([]Event, 0, len(events)+2)
	if hadPrev {
		out = append(out, Event{Kind: EventTimerCleared, Payload: TimerPayload{Key: prev}})
	}
	out = append(out, events...)
	if hasNext {
		out = append(out, Event{
			Kind:    EventTimerSet,
			Payload: TimerPayload{Key: next, Duration: s.timerDuration(g, next)},
		})
	}
	return out, nil
}
