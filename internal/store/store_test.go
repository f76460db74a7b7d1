package store

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"doudizhu/internal/app"
	"doudizhu/internal/config"
	"doudizhu/internal/ports"
)

// startedSnapshot returns a full snapshot of a game in bidding.
func startedSnapshot(t *testing.T, sessionID string) app.Snapshot {
	t.Helper()
	svc := app.NewService(rand.New(rand.NewSource(1)), app.DefaultOptions())
	g, _ := svc.NewGame(sessionID)
	for _, id := range []string{"u0", "u1", "u2"} {
		if _, err := svc.Join(g, id); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	return app.TakeSnapshot(g)
}

func testStoreContract(t *testing.T, st SnapshotStore) {
	ctx := context.Background()

	if _, err := st.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load missing err = %v, want ErrNotFound", err)
	}

	snap := startedSnapshot(t, "room-a")
	if err := st.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Save(ctx, startedSnapshot(t, "room-b")); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := st.Save(ctx, snap.Redacted("u0")); err == nil {
		t.Fatal("saved a redacted snapshot")
	}

	got, err := st.Load(ctx, "room-a")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := app.Restore(got); err != nil {
		t.Fatalf("restore loaded snapshot: %v", err)
	}
	if got.Generation != snap.Generation || len(got.Seats) != 3 {
		t.Fatalf("loaded snapshot differs: %+v", got)
	}

	ids, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "room-a" || ids[1] != "room-b" {
		t.Fatalf("ids = %v", ids)
	}

	if err := st.Delete(ctx, "room-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Load(ctx, "room-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load deleted err = %v", err)
	}
	_ = st.Delete(ctx, "room-b")
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

// Runs against a real server when DOUDIZHU_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DOUDIZHU_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOUDIZHU_TEST_REDIS_ADDR not set")
	}
	cli, err := DialRedis(context.Background(), config.RedisConf{Addr: addr})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	prefix := "doudizhu:test:" + time.Now().Format("150405.000000") + ":"
	testStoreContract(t, NewRedisStore(cli, prefix, time.Minute))
}

func TestRestoreAll(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	if err := st.Save(ctx, startedSnapshot(t, "good")); err != nil {
		t.Fatalf("save: %v", err)
	}
	bad := startedSnapshot(t, "bad")
	bad.Seats[0].Hand = bad.Seats[0].Hand[2:]
	if err := st.Save(ctx, bad); err != nil {
		t.Fatalf("save: %v", err)
	}

	m := app.NewManager(app.NewService(nil, app.DefaultOptions()), nil)
	n, err := RestoreAll(ctx, st, m, ports.NopLogger{})
	if err != nil {
		t.Fatalf("RestoreAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d sessions, want 1", n)
	}
	if _, ok := m.GetGame("good"); !ok {
		t.Fatal("good session not adopted")
	}
	if _, err := st.Load(ctx, "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatal("corrupt snapshot was not deleted")
	}

	// Restoring again does not replace active sessions.
	if n, _ := RestoreAll(ctx, st, m, ports.NopLogger{}); n != 0 {
		t.Fatalf("second RestoreAll adopted %d", n)
	}
}

func TestDialRedisRequiresAddr(t *testing.T) {
	if _, err := DialRedis(context.Background(), config.RedisConf{}); err == nil {
		t.Fatal("expected error without an address")
	}
}

func TestRedisKeysStayOffTheIndex(t *testing.T) {
	st := NewRedisStore(nil, "dz:", 0)
	for _, id := range []string{"index", "sessions", "session", ""} {
		if st.key(id) == st.indexKey() {
			t.Errorf("session %q shares the index key %s", id, st.indexKey())
		}
	}
}
