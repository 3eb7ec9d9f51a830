package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/cache"
)

func newCache(t *testing.T) *cache.FingerprintCache {
	t.Helper()

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set; skipping redis integration tests")
	}

	client, err := cache.Connect(context.Background(), url)
	require.NoError(t, err)

	c := cache.NewFingerprintCache(client, time.Minute, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFingerprintCache_RoundTrip(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	fp := uuid.NewString()

	_, ok := c.Get(ctx, fp)
	assert.False(t, ok)

	entry := cache.Entry{DocumentID: "doc-1", Title: "Deploys", Body: "drain first", Namespace: "ops"}
	require.NoError(t, c.Put(ctx, fp, entry))

	got, ok := c.Get(ctx, fp)
	require.True(t, ok)
	assert.Equal(t, entry, *got)

	require.NoError(t, c.Invalidate(ctx, fp))
	_, ok = c.Get(ctx, fp)
	assert.False(t, ok)
}

func TestFingerprintCache_NilIsNoop(t *testing.T) {
	var c *cache.FingerprintCache
	ctx := context.Background()

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
	assert.NoError(t, c.Put(ctx, "abc", cache.Entry{}))
	assert.NoError(t, c.Invalidate(ctx, "abc"))
	assert.NoError(t, c.Close())
}

func TestConnect_BadURL(t *testing.T) {
	_, err := cache.Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
