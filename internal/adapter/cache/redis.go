package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

const (
	redisKeyPrefix = "tts:"
	redisIndexKey  = "tts:index"
)

// RedisStore shares cached audio between replicas. A sorted set scored by
// creation time backs age eviction.
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to Redis")
	return client, nil
}

func NewRedisStore(client *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+entry.Key, entry.Audio, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(created.Unix()), Member: entry.Key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return nil
}

func (s *RedisStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *RedisStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	full := make([]string, len(keys))
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		full[i] = redisKeyPrefix + k
		members[i] = k
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		pipe.ZRem(ctx, redisIndexKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	return len(keys), nil
}

func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	keys, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.StrLen(ctx, redisKeyPrefix+k)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCacheIO, err)
	}

	var total int64
	for _, c := range cmds {
		total += c.Val()
	}
	return total, nil
}

func (s *RedisStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
