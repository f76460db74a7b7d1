// Package scheduler runs engine deadlines in-process for hosts without their own
// timer loop.
package scheduler

import (
	"sync"
	"time"

	"doudizhu/internal/app"
)

// FireFunc receives a deadline once it elapses. It runs on its own goroutine.
type FireFunc func(key app.TimerKey)

// Local keeps at most one timer per job name with time.AfterFunc. Setting a name
// again replaces the pending timer.
type Local struct {
	mu     sync.Mutex
	fire   FireFunc
	timers map[string]*entry
	closed bool
}

type entry struct {
	key   app.TimerKey
	timer *time.Timer
}

func NewLocal(fire FireFunc) *Local {
	return &Local{fire: fire, timers: make(map[string]*entry)}
}

// Set arms key to fire after d.
func (l *Local) Set(key app.TimerKey, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	name := key.Name()
	if old, ok := l.timers[name]; ok {
		old.timer.Stop()
	}
	e := &entry{key: key}
	e.timer = time.AfterFunc(d, func() { l.expire(name, e) })
	l.timers[name] = e
}

// Clear disarms key. A newer key under the same name is left alone.
func (l *Local) Clear(key app.TimerKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := key.Name()
	if e, ok := l.timers[name]; ok && e.key == key {
		e.timer.Stop()
		delete(l.timers, name)
	}
}

// Pending returns the number of armed timers.
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Stop disarms everything; later Sets are ignored.
func (l *Local) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for name, e := range l.timers {
		e.timer.Stop()
		delete(l.timers, name)
	}
}

func (l *Local) expire(name string, e *entry) {
	l.mu.Lock()
	if l.timers[name] != e {
		l.mu.Unlock()
		return
	}
	delete(l.timers, name)
	l.mu.Unlock()
	l.fire(e.key)
}
