package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	textCachePrefix     = "doctext:"
	defaultTextCacheTTL = 24 * time.Hour
)

type cachedText struct {
	Text     string    `json:"text"`
	CachedAt time.Time `json:"cached_at"`
}

// TextCache stores extracted document text keyed by the document digest
type TextCache struct {
	client *Client
	ttl    time.Duration
}

// NewTextCache creates a new extracted-text cache
func NewTextCache(client *Client, ttl time.Duration) *TextCache {
	if ttl <= 0 {
		ttl = defaultTextCacheTTL
	}
	return &TextCache{client: client, ttl: ttl}
}

// Get retrieves cached text for a digest. A miss returns ok == false.
func (c *TextCache) Get(ctx context.Context, digest string) (string, bool, error) {
	data, err := c.client.rdb.Get(ctx, textCachePrefix+digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached text: %w", err)
	}

	var entry cachedText
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal cached text: %w", err)
	}

	return entry.Text, true, nil
}

// Set caches extracted text for a digest
func (c *TextCache) Set(ctx context.Context, digest, text string) error {
	data, err := json.Marshal(cachedText{Text: text, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal cached text: %w", err)
	}

	return c.client.rdb.Set(ctx, textCachePrefix+digest, data, c.ttl).Err()
}

// Invalidate removes cached text for a digest
func (c *TextCache) Invalidate(ctx context.Context, digest string) error {
	return c.client.rdb.Del(ctx, textCachePrefix+digest).Err()
}

// FlushAll removes all cached texts
func (c *TextCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := textCachePrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
