package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/postgres"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/storagetest"
)

// postgresTestDSN returns the DSN for the test database.
// If POSTGRES_TEST_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func TestBackend(t *testing.T) {
	dsn := postgresTestDSN(t)

	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := postgres.Open(dsn, nil)
		require.NoError(t, err, "Open should succeed")
		require.NoError(t, b.TruncateForTest(context.Background()))

		t.Cleanup(func() {
			_ = b.Close()
		})
		return b
	})
}

func TestKnowledgeIndex(t *testing.T) {
	dsn := postgresTestDSN(t)
	ctx := context.Background()

	b, err := postgres.Open(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, b.TruncateForTest(ctx))
	t.Cleanup(func() { _ = b.Close() })
	idx := b.KnowledgeIndex()

	meta := storage.IndexMetadata{Namespace: "ops", Title: "Deploys", Tags: []string{"runbook"}, Source: "curation"}
	require.NoError(t, idx.IndexDocument(ctx, "doc-1", "rolling deploys drain traffic first", meta))
	require.NoError(t, idx.IndexDocument(ctx, "doc-2", "billing runs nightly", storage.IndexMetadata{Namespace: "finance"}))

	t.Run("requires document id", func(t *testing.T) {
		err := idx.IndexDocument(ctx, "", "body", meta)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("search", func(t *testing.T) {
		hits, err := idx.Search(ctx, "draining", "", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc-1", hits[0].DocumentID)
		assert.Equal(t, "ops", hits[0].Namespace)
		assert.Equal(t, "Deploys", hits[0].Title)
		assert.Positive(t, hits[0].Rank)
	})

	t.Run("title and tags are searchable", func(t *testing.T) {
		hits, err := idx.Search(ctx, "runbook", "ops", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc-1", hits[0].DocumentID)
	})

	t.Run("namespace filter", func(t *testing.T) {
		hits, err := idx.Search(ctx, "nightly", "ops", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("empty query", func(t *testing.T) {
		hits, err := idx.Search(ctx, "   ", "", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("reindex replaces", func(t *testing.T) {
		require.NoError(t, idx.IndexDocument(ctx, "doc-1", "blue green cutover", meta))
		n, err := idx.Count(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		hits, err := idx.Search(ctx, "drain", "", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = idx.Search(ctx, "cutover", "", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, idx.RemoveDocument(ctx, "doc-1"))
		require.NoError(t, idx.RemoveDocument(ctx, "missing"))
		n, err := idx.Count(ctx, "doc-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
