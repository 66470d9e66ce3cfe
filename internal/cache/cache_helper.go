package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheHelper wraps one redis client with a key prefix and JSON codec. A nil
// client degrades every operation to a no-op (reads miss, writes vanish) so
// the engine runs without redis.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{client: client, prefix: prefix}
}

// CacheConfig pairs a key namespace with its TTL.
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

// Only read-mostly catalog data is cached. Session rows never go through
// this package: remaining time is a projection of started_at, and a stale
// cached session would corrupt the timer.
var (
	ExamCacheConfig     = CacheConfig{TTL: 5 * time.Minute, Prefix: "exam:"}
	QuestionCacheConfig = CacheConfig{TTL: 5 * time.Minute, Prefix: "question:"}
	StatsCacheConfig    = CacheConfig{TTL: 5 * time.Minute, Prefix: "stats:"}
	ExistsCacheConfig   = CacheConfig{TTL: 2 * time.Minute, Prefix: "exists:"}
	FastCacheConfig     = CacheConfig{TTL: 5 * time.Minute, Prefix: "fast:"}
)

func (c *CacheHelper) key(k string) string {
	return c.prefix + k
}

func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheNotFound
	case err != nil:
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

func (c *CacheHelper) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, ErrCacheNotAvailable
	}

	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return n > 0, nil
}

// InvalidatePattern deletes every key matching the prefixed glob pattern.
// SCAN keeps the sweep incremental on a shared redis.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	match := c.key(pattern)
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan %s: %w", match, err)
		}
		if len(batch) > 0 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("cache sweep %s: %w", match, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// CacheOrExecute is the cache-aside read path: serve the cached value when
// present, otherwise run fetch, hand its result to dest, and write the cache
// entry in the background so a slow redis never delays the response.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.InfoContext(ctx, "cache read failed, falling through to fetch", "key", key, "error", err)
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	go func(parent context.Context) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancel()
		if err := c.Set(wctx, key, value, ttl); err != nil {
			slog.Error("cache write failed", "key", key, "error", err)
		}
	}(ctx)

	// fetch returns interface{}; round-trip through JSON to fill dest the
	// same way a cache hit would.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// CacheManager groups the per-namespace helpers handed to the repositories.
type CacheManager struct {
	Exam     *CacheHelper
	Question *CacheHelper
	User     *CacheHelper
	Stats    *CacheHelper
	Exists   *CacheHelper
	Fast     *CacheHelper
}

func NewCacheManager(client *redis.Client) *CacheManager {
	prefix := func(p string) string {
		if client == nil {
			return ""
		}
		return p
	}
	return &CacheManager{
		Exam:     NewCacheHelper(client, prefix(ExamCacheConfig.Prefix)),
		Question: NewCacheHelper(client, prefix(QuestionCacheConfig.Prefix)),
		User:     NewCacheHelper(client, prefix("user:")),
		Stats:    NewCacheHelper(client, prefix(StatsCacheConfig.Prefix)),
		Exists:   NewCacheHelper(client, prefix(ExistsCacheConfig.Prefix)),
		Fast:     NewCacheHelper(client, prefix(FastCacheConfig.Prefix)),
	}
}

func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.Fast.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.Fast.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check: %w", err)
	}
	return nil
}

// InvalidateExam drops every cache entry an authoring write to the exam can
// have made stale, including list pages and its stats.
func (cm *CacheManager) InvalidateExam(ctx context.Context, examID uint) error {
	SafeDelete(ctx, cm.Exam, fmt.Sprintf("id:%d", examID))
	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d*", examID))
	return nil
}

// InvalidateQuestion does the same for question bank writes.
func (cm *CacheManager) InvalidateQuestion(ctx context.Context, questionID uint) error {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("id:%d", questionID))
	SafeInvalidatePattern(ctx, cm.Question, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("question:%d*", questionID))
	return nil
}
