package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"doudizhu/internal/domain"
	"doudizhu/internal/ports"
)

// Scheduler arms and disarms deadlines on behalf of the manager. Calls happen while
// the session is locked, so implementations must not call back into the manager
// synchronously.
type Scheduler interface {
	Set(key TimerKey, d time.Duration)
	Clear(key TimerKey)
}

// Result is what a routed action hands back to the host.
type Result struct {
	Snapshot Snapshot
	Events   []Event
}

type session struct {
	mu      sync.Mutex
	game    *domain.Game
	removed bool
}

// Manager owns every active session and serializes actions per session.
// Different sessions proceed in parallel.
type Manager struct {
	svc       *Service
	logger    ports.Logger
	scheduler Scheduler

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewManager builds a manager around svc. A nil logger discards output.
func NewManager(svc *Service, logger ports.Logger) *Manager {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Manager{
		svc:      svc,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// SetScheduler attaches the deadline scheduler. Call before routing actions.
func (m *Manager) SetScheduler(s Scheduler) {
	m.scheduler = s
}

// Service exposes the underlying state machine.
func (m *Manager) Service() *Service {
	return m.svc
}

// GetGame returns a snapshot of the session's game.
func (m *Manager) GetGame(sessionID string) (Snapshot, bool) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return Snapshot{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return Snapshot{}, false
	}
	return TakeSnapshot(sess.game), true
}

// CreateGame opens a session. When one is already active it is returned unchanged
// with created=false.
func (m *Manager) CreateGame(sessionID string) (Result, bool) {
	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return Result{Snapshot: TakeSnapshot(existing.game)}, false
	}
	game, events := m.svc.NewGame(sessionID)
	sess := &session{game: game}
	m.sessions[sessionID] = sess
	sess.mu.Lock()
	m.mu.Unlock()
	defer sess.mu.Unlock()

	m.applyTimers(events)
	m.logger.Info("CreateGame: session %s opened", sessionID)
	return Result{Snapshot: TakeSnapshot(game), Events: events}, true
}

// Adopt registers a restored game, replacing nothing. It returns false when the
// session is already active.
func (m *Manager) Adopt(game *domain.Game) bool {
	m.mu.Lock()
	if _, ok := m.sessions[game.SessionID]; ok {
		m.mu.Unlock()
		return false
	}
	sess := &session{game: game}
	m.sessions[game.SessionID] = sess
	sess.mu.Lock()
	m.mu.Unlock()
	defer sess.mu.Unlock()

	if key, ok := m.svc.ActiveTimer(game); ok && m.scheduler != nil {
		m.scheduler.Set(key, m.svc.timerDuration(game, key))
	}
	return true
}

// RemoveGame discards the session and clears its pending deadline.
func (m *Manager) RemoveGame(sessionID string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	m.retire(sess)
	m.logger.Info("RemoveGame: session %s removed", sessionID)
	return true
}

// Sessions lists the active session IDs in sorted order.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager) Join(sessionID, userID string) (Result, error) {
	return m.do(sessionID, "Join", func(g *domain.Game) ([]Event, error) {
		return m.svc.Join(g, userID)
	})
}

func (m *Manager) StartManually(sessionID string) (Result, error) {
	return m.do(sessionID, "StartManually", m.svc.StartManually)
}

func (m *Manager) Bid(sessionID, userID string, amount int) (Result, error) {
	return m.do(sessionID, "Bid", func(g *domain.Game) ([]Event, error) {
		return m.svc.Bid(g, userID, amount)
	})
}

func (m *Manager) Play(sessionID, userID string, cards []domain.Card) (Result, error) {
	return m.do(sessionID, "Play", func(g *domain.Game) ([]Event, error) {
		return m.svc.Play(g, userID, cards)
	})
}

func (m *Manager) Pass(sessionID, userID string) (Result, error) {
	return m.do(sessionID, "Pass", func(g *domain.Game) ([]Event, error) {
		return m.svc.Pass(g, userID)
	})
}

// TimeoutFired delivers a deadline. Stale keys are dropped without error.
func (m *Manager) TimeoutFired(key TimerKey) (Result, error) {
	return m.do(key.SessionID, "TimeoutFired", func(g *domain.Game) ([]Event, error) {
		return m.svc.Timeout(g, key)
	})
}

func (m *Manager) ResetForReplay(sessionID string) (Result, error) {
	return m.do(sessionID, "ResetForReplay", m.svc.ResetForReplay)
}

func (m *Manager) lookup(sessionID string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

func (m *Manager) do(sessionID, op string, fn func(*domain.Game) ([]Event, error)) (Result, error) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return Result{}, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return Result{}, ErrNoSession
	}

	events, err := fn(sess.game)
	switch {
	case errors.Is(err, ErrStaleTimeout):
		m.logger.Debug("%s: session %s ignored stale timeout", op, sessionID)
		return Result{Snapshot: TakeSnapshot(sess.game)}, nil
	case errors.Is(err, ErrDealInvariant):
		m.logger.Error("%s: session %s aborted: %v", op, sessionID, err)
		m.drop(sessionID, sess)
		return Result{}, err
	case err != nil:
		return Result{}, err
	}

	m.applyTimers(events)
	result := Result{Snapshot: TakeSnapshot(sess.game), Events: events}
	if sess.game.Cancelled {
		m.logger.Info("%s: session %s cancelled", op, sessionID)
		m.drop(sessionID, sess)
	}
	return result, nil
}

// drop removes a session whose lock the caller holds.
func (m *Manager) drop(sessionID string, sess *session) {
	m.mu.Lock()
	if m.sessions[sessionID] == sess {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	m.retire(sess)
}

func (m *Manager) retire(sess *session) {
	if sess.removed {
		return
	}
	sess.removed = true
	if key, ok := m.svc.ActiveTimer(sess.game); ok && m.scheduler != nil {
		m.scheduler.Clear(key)
	}
}

func (m *Manager) applyTimers(events []Event) {
	if m.scheduler == nil {
		return
	}
	for _, ev := range events {
		payload, ok := ev.Payload.(TimerPayload)
		if !ok {
			continue
		}
		switch ev.Kind {
		case EventTimerSet:
			m.scheduler.Set(payload.Key, payload.Duration)
		case EventTimerCleared:
			m.scheduler.Clear(payload.Key)
		}
	}
}
