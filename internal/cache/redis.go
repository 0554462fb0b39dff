package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "webresearch:page:"

// RedisCache stores page records in Redis so a cache survives restarts and
// can be shared between instances. TTL handling is delegated to Redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a Redis-backed cache from a redis:// URL
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	log.Printf("[Cache] RedisCache initialized (ttl=%s)", ttl)
	return &RedisCache{rdb: redis.NewClient(opt), ttl: ttl}, nil
}

// Get returns the cached record for url, or false if absent or expired
func (c *RedisCache) Get(ctx context.Context, url string) (*PageRecord, bool) {
	payload, err := c.rdb.Get(ctx, redisKeyPrefix+url).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Cache] Redis get failed for %s: %v", url, err)
		}
		return nil, false
	}

	var record PageRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		log.Printf("[Cache] Corrupt cache entry for %s: %v", url, err)
		return nil, false
	}
	return &record, true
}

// Put stores record under url with the configured TTL. Failures are logged
// and swallowed: a failed cache write just means a re-fetch later.
func (c *RedisCache) Put(ctx context.Context, url string, record *PageRecord) {
	if record == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("[Cache] Failed to marshal record for %s: %v", url, err)
		return
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+url, payload, c.ttl).Err(); err != nil {
		log.Printf("[Cache] Redis set failed for %s: %v", url, err)
	}
}

// Close releases the underlying Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
