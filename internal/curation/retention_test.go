package curation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/storagetest"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

func TestRunRetentionCleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.Now()
	day := 24 * time.Hour

	decided := func(body string, status types.CurationStatus, changed time.Time, expires *time.Time) string {
		item := storagetest.NewItem(body, "docs", nil)
		item.Status = status
		item.StatusChangedAt = changed
		item.ReviewedAt = &changed
		item.ExpiresAt = expires
		if status == types.StatusApproved {
			item.PublishedDocumentID = "doc-" + body
		}
		require.NoError(t, h.backend.Curation().Insert(ctx, item))
		return item.ID
	}
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	expired := decided("expired rejection", types.StatusRejected, now.Add(-31*day), at(-day))
	fresh := decided("fresh rejection", types.StatusRejected, now.Add(-day), at(29*day))
	oldApproved := decided("old approval", types.StatusApproved, now.Add(-types.DecisionRetentionCeiling-day), nil)
	recentApproved := decided("recent approval", types.StatusApproved, now.Add(-365*day), nil)

	ancient := storagetest.NewItem("ancient pending", "docs", nil)
	ancient.SubmittedAt = now.Add(-10 * 365 * day)
	ancient.StatusChangedAt = ancient.SubmittedAt
	require.NoError(t, h.backend.Curation().Insert(ctx, ancient))

	res, err := h.store.RunRetentionCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExpiredRejected)
	assert.Equal(t, 1, res.PastCeiling)
	assert.Equal(t, 2, res.Total())

	for _, id := range []string{expired, oldApproved} {
		_, err := h.backend.Curation().Get(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	for _, id := range []string{fresh, recentApproved, ancient.ID} {
		_, err := h.backend.Curation().Get(ctx, id)
		assert.NoError(t, err)
	}

	again, err := h.store.RunRetentionCleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}
