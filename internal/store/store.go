// Package store persists game snapshots so a host can restore sessions after a restart.
package store

import (
	"context"
	"errors"
	"fmt"

	"doudizhu/internal/app"
	"doudizhu/internal/ports"
)

var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore keeps the latest full snapshot per session.
type SnapshotStore interface {
	Save(ctx context.Context, snap app.Snapshot) error
	Load(ctx context.Context, sessionID string) (app.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// RestoreAll rebuilds every stored session into m. Snapshots that fail to restore
// are deleted and logged; the number of adopted sessions is returned.
func RestoreAll(ctx context.Context, st SnapshotStore, m *app.Manager, logger ports.Logger) (int, error) {
	ids, err := st.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	restored := 0
	for _, id := range ids {
		snap, err := st.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("load snapshot %s: %w", id, err)
		}
		game, err := app.Restore(snap)
		if err != nil || game.Cancelled {
			logger.Warn("RestoreAll: dropping session %s: %v", id, err)
			if delErr := st.Delete(ctx, id); delErr != nil {
				logger.Error("RestoreAll: failed to delete %s: %v", id, delErr)
			}
			continue
		}
		if m.Adopt(game) {
			restored++
		}
	}
	return restored, nil
}
