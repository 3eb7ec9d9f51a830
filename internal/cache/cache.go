// Package cache holds the redis-backed fingerprint cache used by the exact
// duplicate tier. Only published documents are cached; entries change solely
// through Put and Invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

// FingerprintKey is the redis key pattern for one content fingerprint.
const FingerprintKey = "curation:fingerprint:%s"

// Entry is the cached identity of a published document.
type Entry struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Namespace  string `json:"namespace"`
}

// FingerprintCache maps content fingerprints to published documents.
type FingerprintCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// Connect parses url and verifies the connection with a ping.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.IdleTimeout = 30 * time.Minute

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewFingerprintCache wraps client. A non-positive ttl keeps keys forever.
func NewFingerprintCache(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *FingerprintCache {
	if ttl < 0 {
		ttl = 0
	}
	return &FingerprintCache{
		client: client,
		ttl:    ttl,
		logger: logging.OrDiscard(logger),
	}
}

// Get returns the cached entry for fingerprint. A miss or a redis failure
// both report ok=false; failures are logged, not returned.
func (c *FingerprintCache) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	if c == nil || fingerprint == "" {
		return nil, false
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(FingerprintKey, fingerprint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("fingerprint cache read failed")
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("fingerprint cache entry is corrupt")
		return nil, false
	}
	return &entry, true
}

// Put caches entry under fingerprint.
func (c *FingerprintCache) Put(ctx context.Context, fingerprint string, entry Entry) error {
	if c == nil || fingerprint == "" {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint entry: %w", err)
	}
	if err := c.client.Set(ctx, fmt.Sprintf(FingerprintKey, fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache fingerprint: %w", err)
	}
	return nil
}

// Invalidate drops the entry for fingerprint.
func (c *FingerprintCache) Invalidate(ctx context.Context, fingerprint string) error {
	if c == nil || fingerprint == "" {
		return nil
	}
	if err := c.client.Del(ctx, fmt.Sprintf(FingerprintKey, fingerprint)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate fingerprint: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *FingerprintCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
