package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PublicFeedKey is the cache key of the shared public feed.
const PublicFeedKey = "feed:public"

// UserFeedKey returns the cache key of a viewer's personal feed.
func UserFeedKey(userID string) string {
	return "user:" + userID
}

// FeedCache stores an ordered list of post ids per feed key, newest first.
// Single-key operations are atomic at the storage layer; no cross-key
// transactionality is provided.
type FeedCache interface {
	// AppendPost inserts postID at the head of the list for key and resets
	// the key's expiry. A ttl of zero applies the cache's default TTL.
	AppendPost(ctx context.Context, key, postID string, ttl time.Duration) error
	// Range returns ids in the inclusive index range [start, stop]. A missing
	// key yields an empty result, not an error.
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	// Trim keeps only the newest maxLen ids for key.
	Trim(ctx context.Context, key string, maxLen int64) error
	// Remove evicts the cached list entirely.
	Remove(ctx context.Context, key string) error
	// Exists reports presence of the key without fetching contents.
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// effectiveTTL substitutes def for a non-positive requested ttl.
func effectiveTTL(ttl, def time.Duration) time.Duration {
	if ttl <= 0 {
		return def
	}
	return ttl
}

// RedisFeedCache implements FeedCache on redis lists.
type RedisFeedCache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// NewRedis creates a redis-backed feed cache.
func NewRedis(addr, password string, db int, defaultTTL time.Duration) *RedisFeedCache {
	opts := &redis.Options{
		Addr: addr,
		DB:   db,
	}
	if password != "" {
		opts.Password = password
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisFeedCache{
		rdb:        redis.NewClient(opts),
		defaultTTL: defaultTTL,
	}
}

// Ping verifies connectivity at startup.
func (c *RedisFeedCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisFeedCache) AppendPost(ctx context.Context, key, postID string, ttl time.Duration) error {
	ttl = effectiveTTL(ttl, c.defaultTTL)
	// LPUSH and EXPIRE run in one round trip so the expiry always follows
	// the mutation it belongs to.
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, postID)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisFeedCache) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	ids, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return ids, err
}

func (c *RedisFeedCache) Trim(ctx context.Context, key string, maxLen int64) error {
	return c.rdb.LTrim(ctx, key, 0, maxLen-1).Err()
}

func (c *RedisFeedCache) Remove(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisFeedCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisFeedCache) Close() error {
	return c.rdb.Close()
}
