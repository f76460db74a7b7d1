// Package sim plays AI-only sessions in process against real timers. It drives
// the same Manager and scheduler a host would, which makes it a soak test for
// the engine and a way to warm a snapshot store.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"doudizhu/internal/app"
	"doudizhu/internal/domain"
	"doudizhu/internal/ports"
	"doudizhu/internal/scheduler"
	"doudizhu/internal/store"
)

type Config struct {
	Sessions int
	Options  app.Options
	Seed     int64
	// Store receives a snapshot after every state change. Finished sessions are
	// deleted from it. Optional.
	Store store.SnapshotStore
	// Restore adopts the sessions already in Store before new ones are opened.
	Restore bool
	Logger  ports.Logger
	NewID   func() string
}

type Summary struct {
	Games        int
	Cancelled    int
	Restored     int
	LandlordWins int
	FarmerWins   int
	Springs      int
	AntiSprings  int
	Bombs        int
	Rockets      int
	TopScore     int64
	Elapsed      time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("games=%d cancelled=%d restored=%d landlord=%d farmers=%d springs=%d anti_springs=%d bombs=%d rockets=%d top_score=%d elapsed=%s",
		s.Games, s.Cancelled, s.Restored, s.LandlordWins, s.FarmerWins, s.Springs, s.AntiSprings, s.Bombs, s.Rockets, s.TopScore, s.Elapsed.Round(time.Millisecond))
}

func (s *Summary) add(snap app.Snapshot) {
	r := snap.Report
	if snap.Cancelled || r == nil {
		s.Cancelled++
		return
	}
	s.Games++
	switch r.WinningRole {
	case domain.RoleLandlord:
		s.LandlordWins++
	case domain.RoleFarmer:
		s.FarmerWins++
	}
	if r.Spring {
		s.Springs++
	}
	if r.AntiSpring {
		s.AntiSprings++
	}
	s.Bombs += r.BombCount
	if r.RocketUsed {
		s.Rockets++
	}
	if r.Score > s.TopScore {
		s.TopScore = r.Score
	}
}

type runner struct {
	ctx    context.Context
	m      *app.Manager
	store  store.SnapshotStore
	logger ports.Logger

	storeMu sync.Mutex
	closed  map[string]bool // finished sessions whose snapshot was deleted

	mu       sync.Mutex
	finished []app.Snapshot
	wake     chan struct{}
}

// Run opens cfg.Sessions tables of AI players and blocks until every one of
// them, plus any restored session, has finished or ctx is done.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	if cfg.Sessions < 0 {
		return Summary{}, errors.New("sim: sessions must not be negative")
	}
	if cfg.Logger == nil {
		cfg.Logger = ports.NopLogger{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	opts := cfg.Options
	opts.MinHumansToStart = -1

	start := time.Now()
	m := app.NewManager(app.NewService(rand.New(rand.NewSource(cfg.Seed)), opts), cfg.Logger)
	r := &runner{
		ctx:    ctx,
		m:      m,
		store:  cfg.Store,
		logger: cfg.Logger,
		closed: make(map[string]bool),
		wake:   make(chan struct{}, 1),
	}
	sched := scheduler.NewLocal(r.fire)
	defer sched.Stop()
	m.SetScheduler(sched)

	var sum Summary
	if cfg.Restore && cfg.Store != nil {
		n, err := store.RestoreAll(ctx, cfg.Store, m, cfg.Logger)
		if err != nil {
			return sum, err
		}
		sum.Restored = n
		cfg.Logger.Info("Run: restored %d sessions", n)
	}

	for i := 0; i < cfg.Sessions; i++ {
		id := cfg.NewID()
		if _, created := m.CreateGame(id); !created {
			return sum, fmt.Errorf("sim: duplicate session id %s", id)
		}
		res, err := m.StartManually(id)
		if err != nil {
			return sum, fmt.Errorf("sim: start %s: %w", id, err)
		}
		r.persist(res.Snapshot)
	}

	target := sum.Restored + cfg.Sessions
	for {
		done := r.drain()
		for _, snap := range done {
			sum.add(snap)
		}
		if sum.Games+sum.Cancelled >= target {
			break
		}
		select {
		case <-ctx.Done():
			sum.Elapsed = time.Since(start)
			return sum, ctx.Err()
		case <-r.wake:
		}
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func (r *runner) fire(key app.TimerKey) {
	res, err := r.m.TimeoutFired(key)
	if err != nil {
		if errors.Is(err, app.ErrNoSession) {
			return
		}
		r.logger.Error("fire: %s: %v", key, err)
		if errors.Is(err, app.ErrDealInvariant) {
			r.discard(key.SessionID)
			r.finish(app.Snapshot{SessionID: key.SessionID, Cancelled: true})
		}
		return
	}
	if len(res.Events) == 0 {
		return
	}
	snap := res.Snapshot
	if snap.Phase != domain.PhaseGameOver && !snap.Cancelled {
		r.persist(snap)
		return
	}
	r.m.RemoveGame(key.SessionID)
	r.discard(key.SessionID)
	r.finish(snap)
}

func (r *runner) persist(snap app.Snapshot) {
	if r.store == nil {
		return
	}
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.closed[snap.SessionID] {
		return
	}
	if err := r.store.Save(r.ctx, snap); err != nil {
		r.logger.Warn("persist: session %s: %v", snap.SessionID, err)
	}
}

func (r *runner) discard(sessionID string) {
	if r.store == nil {
		return
	}
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	r.closed[sessionID] = true
	if err := r.store.Delete(r.ctx, sessionID); err != nil {
		r.logger.Warn("discard: session %s: %v", sessionID, err)
	}
}

func (r *runner) finish(snap app.Snapshot) {
	r.mu.Lock()
	r.finished = append(r.finished, snap)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *runner) drain() []app.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.finished
	r.finished = nil
	return out
}
