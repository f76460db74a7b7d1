package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"doudizhu/internal/app"
	"doudizhu/internal/config"
)

// RedisStore keeps one JSON value per session plus a set indexing the live sessions.
type RedisStore struct {
	cli    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore uses cli with keys under prefix. ttl <= 0 keeps snapshots forever.
func NewRedisStore(cli redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{cli: cli, prefix: prefix, ttl: ttl}
}

// DialRedis connects with conf and pings the server.
func DialRedis(ctx context.Context, conf config.RedisConf) (*redis.Client, error) {
	if conf.Addr == "" {
		return nil, errors.New("redis addr is not configured")
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", conf.Addr, err)
	}
	return cli, nil
}

// Session values live under <prefix>session: so no session ID can land on the index key.
func (s *RedisStore) key(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *RedisStore) Save(ctx context.Context, snap app.Snapshot) error {
	if snap.IsRedacted {
		return fmt.Errorf("save %s: refusing a redacted snapshot", snap.SessionID)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.SessionID, err)
	}
	_, err = s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(snap.SessionID), data, s.ttl)
		pipe.SAdd(ctx, s.indexKey(), snap.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (app.Snapshot, error) {
	data, err := s.cli.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired values leave their index entry behind.
		s.cli.SRem(ctx, s.indexKey(), sessionID)
		return app.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return app.Snapshot{}, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return app.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.cli.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
