package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"doudizhu/internal/app"
)

// MemoryStore keeps encoded snapshots in process. Values are stored as JSON so
// callers see the same copy semantics as with Redis.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, snap app.Snapshot) error {
	if snap.IsRedacted {
		return fmt.Errorf("save %s: refusing a redacted snapshot", snap.SessionID)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.SessionID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.SessionID] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (app.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return app.Snapshot{}, ErrNotFound
	}
	var snap app.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
