package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/sqlite"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/storagetest"
)

func newBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return newBackend(t)
	})
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.db")

	b, err := sqlite.Open(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	item := storagetest.NewItem("persisted across reopen", "ops", []float64{1, 0})
	require.NoError(t, b.Curation().Insert(ctx, item))
	require.NoError(t, b.Close())

	b, err = sqlite.Open(path, nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	got, err := b.Curation().Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Body, got.Body)
	assert.Equal(t, []float64{1, 0}, got.Embedding)
	assert.True(t, item.SubmittedAt.Equal(got.SubmittedAt))
}

func TestKnowledgeIndex(t *testing.T) {
	ctx := context.Background()
	idx := newBackend(t).KnowledgeIndex()

	meta := storage.IndexMetadata{Namespace: "ops", Title: "Deploys", Tags: []string{"runbook"}, Source: "curation"}
	require.NoError(t, idx.IndexDocument(ctx, "doc-1", "rolling deploys drain traffic first", meta))
	require.NoError(t, idx.IndexDocument(ctx, "doc-2", "billing runs nightly", storage.IndexMetadata{Namespace: "finance"}))

	t.Run("search", func(t *testing.T) {
		hits, err := idx.Search(ctx, "deploys", "", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc-1", hits[0].DocumentID)
		assert.Equal(t, "ops", hits[0].Namespace)
	})

	t.Run("namespace filter", func(t *testing.T) {
		hits, err := idx.Search(ctx, "nightly", "ops", 10)
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
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, idx.RemoveDocument(ctx, "doc-1"))
		require.NoError(t, idx.RemoveDocument(ctx, "missing"))
		n, err := idx.Count(ctx, "doc-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("quoted input", func(t *testing.T) {
		hits, err := idx.Search(ctx, `"billing" OR`, "", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 0)
	})
}
