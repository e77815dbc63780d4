package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"

	config "github.com/inference-gateway/desktop-agent/config"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

const redisKeyPrefix = "desktop-agent"

// RedisStore implements EventStore with one list per session, a sorted-set
// index ordered by last activity, and a pub/sub channel for live readers
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	channel string
}

// NewRedisStore connects and pings the server
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg config.RedisConfig) *RedisStore {
	var ttl time.Duration
	if cfg.TTL > 0 {
		ttl = time.Duration(cfg.TTL) * time.Second
	}
	return &RedisStore{client: client, ttl: ttl, channel: cfg.Channel}
}

func (s *RedisStore) eventsKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:events", redisKeyPrefix, sessionID)
}

func (s *RedisStore) indexKey() string {
	return redisKeyPrefix + ":sessions"
}

func (s *RedisStore) Append(ctx context.Context, event domain.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := s.eventsKey(event.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.ZAdd(ctx, s.indexKey(), &redis.Z{
		Score:  float64(event.Timestamp.UnixNano()),
		Member: event.SessionID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event to Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	events := make([]domain.SessionEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.SessionEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *RedisStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		events, err := s.Load(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summarize(id, events))
	}
	return summaries, nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
