// Package storagetest is a behavioural test suite every storage backend runs.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) storage.Backend

// Run exercises all three collections of the backend produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("CurationCRUD", func(t *testing.T) { testCurationCRUD(t, newBackend(t)) })
	t.Run("CurationCompareAndSet", func(t *testing.T) { testCurationCompareAndSet(t, newBackend(t)) })
	t.Run("CurationList", func(t *testing.T) { testCurationList(t, newBackend(t)) })
	t.Run("CurationPendingLookups", func(t *testing.T) { testCurationPendingLookups(t, newBackend(t)) })
	t.Run("CurationRetention", func(t *testing.T) { testCurationRetention(t, newBackend(t)) })
	t.Run("Documents", func(t *testing.T) { testDocuments(t, newBackend(t)) })
	t.Run("Frequency", func(t *testing.T) { testFrequency(t, newBackend(t)) })
}

// NewItem builds a valid pending item.
func NewItem(body, namespace string, embedding []float64) *types.CurationItem {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.CurationItem{
		ID:                  uuid.NewString(),
		Title:               "title " + body,
		Body:                body,
		Tags:                []string{"t1"},
		SuggestedNamespaces: []string{namespace},
		SubmittedBy:         "tester",
		ContentHash:         "hash-" + body,
		NormalizedBody:      body,
		Embedding:           embedding,
		Status:              types.StatusPending,
		SubmittedAt:         now,
		StatusChangedAt:     now,
		UpdatedAt:           now,
	}
}

func testCurationCRUD(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Curation()

	item := NewItem("alpha", "support", []float64{1, 0, 0})
	score := 72.5
	item.QualityScore = &score
	item.AutoAnalysis = &types.AutoAnalysis{
		Score:          72.5,
		Recommendation: types.RecommendReview,
		Reasoning:      "ok",
		Flags:          []string{"pii"},
		Source:         types.AnalysisSourceCurator,
	}
	require.NoError(t, s.Insert(ctx, item))
	assert.True(t, errors.Is(s.Insert(ctx, item), storage.ErrConflict))

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Body, got.Body)
	assert.Equal(t, item.ContentHash, got.ContentHash)
	assert.Equal(t, []string{"support"}, got.SuggestedNamespaces)
	assert.Equal(t, []float64{1, 0, 0}, got.Embedding)
	require.NotNil(t, got.QualityScore)
	assert.Equal(t, 72.5, *got.QualityScore)
	require.NotNil(t, got.AutoAnalysis)
	assert.Equal(t, types.RecommendReview, got.AutoAnalysis.Recommendation)
	assert.Equal(t, []string{"pii"}, got.AutoAnalysis.Flags)
	assert.True(t, item.SubmittedAt.Equal(got.SubmittedAt))

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.Delete(ctx, item.ID))
	assert.True(t, errors.Is(s.Delete(ctx, item.ID), storage.ErrNotFound))
}

func testCurationCompareAndSet(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Curation()

	item := NewItem("beta", "support", nil)
	require.NoError(t, s.Insert(ctx, item))

	approved := item.Clone()
	now := time.Now().UTC().Truncate(time.Millisecond)
	approved.Status = types.StatusApproved
	approved.PublishedDocumentID = "doc-1"
	approved.ReviewedAt = &now
	approved.ReviewedBy = "reviewer"
	approved.StatusChangedAt = now
	require.NoError(t, s.Update(ctx, approved, types.StatusPending))

	// A second writer still believing the item is pending loses.
	rejected := item.Clone()
	rejected.Status = types.StatusRejected
	err := s.Update(ctx, rejected, types.StatusPending)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Status)
	assert.Equal(t, "doc-1", got.PublishedDocumentID)
	assert.Equal(t, "reviewer", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	missing := NewItem("ghost", "support", nil)
	assert.True(t, errors.Is(s.Update(ctx, missing, types.StatusPending), storage.ErrNotFound))
}

func testCurationList(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Curation()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, ns := range []string{"support", "support", "billing"} {
		item := NewItem("list"+string(rune('a'+i)), ns, nil)
		item.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		item.StatusChangedAt = item.SubmittedAt
		require.NoError(t, s.Insert(ctx, item))
	}
	rejected := NewItem("listr", "support", nil)
	exp := base.Add(types.RejectionRetention)
	rejected.Status = types.StatusRejected
	rejected.ReviewedBy = "carol"
	rejected.ExpiresAt = &exp
	require.NoError(t, s.Insert(ctx, rejected))

	all, err := s.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)

	pending, err := s.List(ctx, storage.ListOptions{Statuses: []types.CurationStatus{types.StatusPending}, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, pending.Items, 3)
	assert.Equal(t, "lista", pending.Items[0].Body)

	bySupport, err := s.List(ctx, storage.ListOptions{Namespace: "support"})
	require.NoError(t, err)
	assert.Equal(t, 3, bySupport.Total)

	byReviewer, err := s.List(ctx, storage.ListOptions{ReviewedBy: "carol"})
	require.NoError(t, err)
	require.Len(t, byReviewer.Items, 1)
	assert.Equal(t, rejected.ID, byReviewer.Items[0].ID)

	page, err := s.List(ctx, storage.ListOptions{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
}

func testCurationPendingLookups(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Curation()

	a := NewItem("gamma", "support", []float64{1, 0, 0})
	c := NewItem("delta", "support", []float64{0.9, 0.1, 0})
	other := NewItem("epsilon", "billing", []float64{1, 0, 0})
	for _, it := range []*types.CurationItem{a, c, other} {
		require.NoError(t, s.Insert(ctx, it))
	}

	got, err := s.FindPendingByHash(ctx, a.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.FindPendingByHash(ctx, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	matches, err := s.SearchSimilarPending(ctx, []float64{1, 0, 0}, storage.SimilarityOptions{Namespace: "support"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, a.ID, matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.True(t, matches[0].Pending)

	matches, err = s.SearchSimilarPending(ctx, []float64{1, 0, 0}, storage.SimilarityOptions{ExcludeID: a.ID})
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, a.ID, m.ID)
	}
	assert.Len(t, matches, 2)
}

func testCurationRetention(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Curation()

	now := time.Now().UTC().Truncate(time.Millisecond)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	ancient := now.Add(-types.DecisionRetentionCeiling - 24*time.Hour)

	expired := NewItem("expired", "ns", nil)
	expired.Status = types.StatusRejected
	expired.ExpiresAt = &past

	fresh := NewItem("fresh", "ns", nil)
	fresh.Status = types.StatusRejected
	fresh.ExpiresAt = &future

	oldApproved := NewItem("old-approved", "ns", nil)
	oldApproved.Status = types.StatusApproved
	oldApproved.PublishedDocumentID = "doc"
	oldApproved.StatusChangedAt = ancient

	oldPending := NewItem("old-pending", "ns", nil)
	oldPending.SubmittedAt = ancient
	oldPending.StatusChangedAt = ancient

	for _, it := range []*types.CurationItem{expired, fresh, oldApproved, oldPending} {
		require.NoError(t, s.Insert(ctx, it))
	}

	n, err := s.DeleteExpiredRejected(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteDecidedBefore(ctx, now.Add(-types.DecisionRetentionCeiling))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, oldPending.ID)
	assert.NoError(t, err, "pending items are never purged")
	_, err = s.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func testDocuments(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Documents()

	doc := &types.PublishedDocument{
		ID:           uuid.NewString(),
		Title:        "Doc",
		Body:         "body",
		Namespace:    "support",
		Tags:         []string{types.TagAbsorbed},
		Source:       types.SourceAbsorption,
		ContentHash:  "dochash",
		Embedding:    []float64{0, 1, 0},
		AbsorbedFrom: "orig-1",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Create(ctx, doc))
	assert.True(t, errors.Is(s.Create(ctx, doc), storage.ErrConflict))

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "orig-1", got.AbsorbedFrom)
	assert.Equal(t, []string{types.TagAbsorbed}, got.Tags)

	byHash, err := s.FindByHash(ctx, "dochash")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)

	matches, err := s.SearchSimilar(ctx, []float64{0, 1, 0}, storage.SimilarityOptions{Namespace: "support", MinSimilarity: 0.5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Pending)

	matches, err = s.SearchSimilar(ctx, []float64{0, 1, 0}, storage.SimilarityOptions{Namespace: "billing"})
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, s.Delete(ctx, doc.ID))
	_, err = s.Get(ctx, doc.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, doc.ID), storage.ErrNotFound))
}

func testFrequency(t *testing.T, b storage.Backend) {
	defer func() { _ = b.Close() }()
	ctx := context.Background()
	s := b.Frequency()

	_, _, err := s.FindNearest(ctx, []float64{1, 0}, "")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &types.QueryFrequencyRecord{
		ID:             uuid.NewString(),
		Hash:           "h",
		NormalizedText: "reset password",
		Embedding:      []float64{1, 0},
		HitCount:       1,
		FirstSeenAt:    now,
		LastSeenAt:     now,
	}
	require.NoError(t, s.Insert(ctx, rec))

	scoped := &types.QueryFrequencyRecord{
		ID:          uuid.NewString(),
		Hash:        "h2",
		Embedding:   []float64{1, 0},
		HitCount:    1,
		Namespace:   "billing",
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	require.NoError(t, s.Insert(ctx, scoped))

	got, sim, err := s.FindNearest(ctx, []float64{1, 0.01}, "")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Greater(t, sim, 0.99)

	later := now.Add(time.Hour)
	require.NoError(t, s.RecordHit(ctx, rec.ID, later, "corr-1"))
	got, _, err = s.FindNearest(ctx, []float64{1, 0}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.HitCount)
	assert.True(t, later.Equal(got.LastSeenAt))
	assert.Equal(t, "corr-1", got.LastCorrelationID)

	assert.True(t, errors.Is(s.RecordHit(ctx, "missing", later, ""), storage.ErrNotFound))

	require.NoError(t, s.SetDecayedCount(ctx, rec.ID, 1.5))
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := s.DeleteStale(ctx, now.Add(time.Minute), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the single-hit stale record is purged")
}
