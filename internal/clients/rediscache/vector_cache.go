package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/platform/envutil"
)

// VectorCache is a shared cache of embedding vectors keyed by caller-built
// strings. Lookups are best effort; a miss is a nil vector, not an error.
type VectorCache interface {
	GetMany(ctx context.Context, keys []string) ([][]float32, error)
	SetMany(ctx context.Context, keys []string, vectors [][]float32) error
	Close() error
}

type vectorCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewVectorCache(log *logger.Logger) (VectorCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(envutil.Str("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttl := time.Duration(envutil.Int("REDIS_EMBED_TTL_SECONDS", 7*24*3600)) * time.Second

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &vectorCache{
		log: log.With("service", "RedisVectorCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *vectorCache) GetMany(ctx context.Context, keys []string) ([][]float32, error) {
	out := make([][]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil {
			c.log.Warn("bad cached vector", "key", keys[i], "error", err)
			continue
		}
		out[i] = vec
	}
	return out, nil
}

func (c *vectorCache) SetMany(ctx context.Context, keys []string, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys/vectors length mismatch: %d != %d", len(keys), len(vectors))
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for i := range keys {
		if len(vectors[i]) == 0 {
			continue
		}
		raw, err := json.Marshal(vectors[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, keys[i], raw, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *vectorCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
