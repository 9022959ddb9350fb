// Package cache holds derived read models (feed pages, post summaries,
// thread views) in Redis with explicit pattern-based invalidation. Mutating
// flows invalidate before responding, so a client told its mutation
// succeeded can never read the pre-mutation state from cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/rueidis"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint for SCAN during pattern invalidation.
const scanBatch = 100

// refreshTimeout bounds one background refresh attempt after a stale read.
const refreshTimeout = 10 * time.Second

// Entry is a cached value with its version tag. The version doubles as the
// HTTP etag for conditional requests.
type Entry struct {
	Version string          `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// Cache is the Redis-backed read-model cache.
type Cache struct {
	client rueidis.Client
	logger *zap.Logger
}

// New creates a cache on top of the given Redis client.
func New(client rueidis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.Named("cache"),
	}
}

// Get returns the cached entry for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}

	return &entry, nil
}

// Set stores the value under key with the given TTL and returns the version
// tag derived from the content.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (string, error) {
	entry := Entry{
		Version: Version(value),
		Value:   value,
	}

	data, err := sonic.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).
		Ex(ttl).Build()).Error()
	if err != nil {
		return "", fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	return entry.Version, nil
}

// Invalidate deletes every key matching the pattern and returns the number
// of keys removed.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).
			Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan pattern %s: %w", pattern, err)
		}

		if len(entry.Elements) > 0 {
			err = c.client.Do(ctx, c.client.B().Del().Key(entry.Elements...).Build()).Error()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys for %s: %w", pattern, err)
			}

			deleted += len(entry.Elements)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// InvalidateAll evicts several patterns concurrently and returns the total
// number of keys removed. Errors are joined so a failing pattern does not
// stop the others.
func (c *Cache) InvalidateAll(ctx context.Context, patterns ...string) (int, error) {
	var (
		total int
		mu    sync.Mutex
	)

	p := pool.New().WithContext(ctx)

	for _, pattern := range patterns {
		p.Go(func(ctx context.Context) error {
			count, err := c.Invalidate(ctx, pattern)

			mu.Lock()
			total += count
			mu.Unlock()

			return err
		})
	}

	err := p.Wait()

	return total, err
}

// GetStale implements the serve-stale-then-refresh read path used for feed
// listings: a hit is returned immediately while the value is refreshed in
// the background, a miss falls through to a synchronous fetch. Reads that
// must be fresh (the resource the user just mutated) bypass this and call
// fetch directly.
func (c *Cache) GetStale(
	ctx context.Context, key string, ttl time.Duration,
	fetch func(context.Context) ([]byte, error),
) ([]byte, string, error) {
	entry, err := c.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed, falling through to fetch",
			zap.String("key", key), zap.Error(err))
	}

	if entry != nil {
		go c.refresh(key, ttl, fetch)
		return entry.Value, entry.Version, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, "", err
	}

	version, err := c.Set(ctx, key, value, ttl)
	if err != nil {
		// Losing the cache write only costs the next reader a fetch.
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return value, Version(value), nil
	}

	return value, version, nil
}

// refresh re-fetches the value off the request path with bounded retries.
func (c *Cache) refresh(key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	operation := func() error {
		value, err := fetch(ctx)
		if err != nil {
			return err
		}

		_, err = c.Set(ctx, key, value, ttl)

		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Warn("Background cache refresh failed",
			zap.String("key", key), zap.Error(err))
	}
}

// Version derives the content version tag served as the HTTP etag.
func Version(value []byte) string {
	h := fnv.New64a()
	h.Write(value)

	return fmt.Sprintf("%016x", h.Sum64())
}
