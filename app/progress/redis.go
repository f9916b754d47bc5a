package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/reway/app/bookmark"
)

// RedisStore shares import progress between processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func Key(jobID string) string {
	return fmt.Sprintf("import:%s", jobID)
}

func (s *RedisStore) Save(ctx context.Context, p bookmark.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress for job %s: %w", p.JobID, err)
	}

	if err := s.client.Set(ctx, Key(p.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save progress for job %s: %w", p.JobID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*bookmark.Progress, error) {
	data, err := s.client.Get(ctx, Key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for job %s: %w", jobID, err)
	}

	var p bookmark.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress for job %s: %w", jobID, err)
	}
	return &p, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
