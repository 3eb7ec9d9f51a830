package curation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/dedup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const keysBody = "Rotate the signing keys every ninety days."

func TestNewStore_RequiresCoreDeps(t *testing.T) {
	_, err := curation.NewStore(curation.Deps{}, curation.Config{})
	assert.Error(t, err)

	h := newHarness(t)
	_, err = curation.NewStore(curation.Deps{Items: h.backend.Curation(), Documents: h.backend.Documents()}, curation.Config{})
	assert.Error(t, err)
}

func TestSubmit_QueuesPendingItem(t *testing.T) {
	h := newHarness(t)
	h.emb.Set(keysBody, []float64{1, 0, 0})
	h.emb.Set("key rotation", []float64{0, 1, 0})
	ctx := context.Background()

	item, err := h.store.Submit(ctx, curation.SubmitRequest{
		Title:       "Key rotation",
		Body:        "  " + keysBody + "  ",
		Namespaces:  []string{"security", "ops", "security", " "},
		Tags:        []string{"keys", "keys"},
		SubmittedBy: "ana",
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusPending, item.Status)
	assert.Equal(t, keysBody, item.Body)
	assert.Equal(t, []string{"security", "ops"}, item.SuggestedNamespaces)
	assert.Equal(t, []string{"keys"}, item.Tags)
	assert.Equal(t, normalize.Fingerprint(normalize.Normalize(keysBody)), item.ContentHash)
	assert.Equal(t, []float64{1, 0, 0}, item.Embedding)
	require.NotNil(t, item.QualityScore)
	assert.Equal(t, 60.0, *item.QualityScore)
	require.NotNil(t, item.AutoAnalysis)
	assert.Equal(t, types.AnalysisSourceCurator, item.AutoAnalysis.Source)
	assert.Equal(t, "fake", item.AutoAnalysis.Model)
	assert.NotEmpty(t, item.DecisionReason)

	stored, err := h.store.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ContentHash, stored.ContentHash)
	assert.Equal(t, []float64{1, 0, 0}, stored.Embedding)

	records, err := h.backend.Frequency().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "security", records[0].Namespace)
	assert.Equal(t, item.ID, records[0].LastCorrelationID)
}

func TestSubmit_IdenticalTextTwice(t *testing.T) {
	h := newHarness(t)
	h.emb.Set(keysBody, []float64{1, 0, 0})
	ctx := context.Background()

	first, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "Keys", Body: keysBody})
	require.NoError(t, err)

	embedCalls := h.emb.Calls()
	_, err = h.store.Submit(ctx, curation.SubmitRequest{Title: "Keys again", Body: "ROTATE the signing keys, every ninety days"})

	var dup *curation.DuplicateContentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1.0, dup.Similarity)
	assert.Equal(t, first.ID, dup.MatchedID)
	assert.True(t, dup.IsPending)
	assert.Nil(t, dup.NewContentPercent)
	assert.Equal(t, embedCalls, h.emb.Calls(), "exact tier must not embed")

	all, err := h.store.ListAll(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Total)
}

func TestSubmit_ExactDuplicateOfPublished(t *testing.T) {
	h := newHarness(t)
	h.emb.Set(keysBody, []float64{1, 0, 0})
	h.curator.SetReply(verdict(92, "approve"))
	ctx := context.Background()

	first, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "Keys", Body: keysBody})
	require.NoError(t, err)
	require.Equal(t, types.StatusApproved, first.Status)

	_, err = h.store.Submit(ctx, curation.SubmitRequest{Title: "Keys", Body: keysBody})
	var dup *curation.DuplicateContentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1.0, dup.Similarity)
	assert.Equal(t, first.PublishedDocumentID, dup.MatchedID)
	assert.False(t, dup.IsPending)
	require.NotNil(t, dup.NewContentPercent)
	assert.Equal(t, 0.0, *dup.NewContentPercent)
}

func TestSubmit_InvalidBody(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{"", "   ", "?!...;"} {
		_, err := h.store.Submit(context.Background(), curation.SubmitRequest{Title: "x", Body: body})
		assert.ErrorIs(t, err, storage.ErrInvalidInput, "body %q", body)
	}
}

func TestSubmit_EmbeddingFailureDoesNotFail(t *testing.T) {
	h := newHarness(t)

	item, err := h.store.Submit(context.Background(), curation.SubmitRequest{Title: "No vector", Body: "nothing registered for this body"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, item.Status)
	assert.Nil(t, item.Embedding)
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, dedup.CheckRequest) (*dedup.Verdict, error) {
	return nil, errors.New("store down")
}

func TestSubmit_DetectorStoreFailure(t *testing.T) {
	h := newHarness(t, func(d *curation.Deps, _ *curation.Config) { d.Detector = failingChecker{} })

	_, err := h.store.Submit(context.Background(), curation.SubmitRequest{Body: keysBody})
	require.Error(t, err)

	all, err := h.store.ListAll(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, all.Total)
}

func TestEditPending(t *testing.T) {
	h := newHarness(t)
	h.emb.Set(keysBody, []float64{1, 0, 0})
	ctx := context.Background()

	item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "Keys", Body: keysBody, Namespaces: []string{"security"}})
	require.NoError(t, err)
	require.NotNil(t, item.Embedding)

	title := "Signing key rotation"
	body := "Rotate the signing keys every thirty days."
	edited, err := h.store.EditPending(ctx, item.ID, curation.Updates{Title: &title, Body: &body, Tags: &[]string{"keys", "pki"}})
	require.NoError(t, err)

	assert.Equal(t, title, edited.Title)
	assert.Equal(t, body, edited.Body)
	assert.Equal(t, normalize.Fingerprint(normalize.Normalize(body)), edited.ContentHash)
	assert.Nil(t, edited.Embedding)
	assert.Nil(t, edited.QualityScore)
	assert.Nil(t, edited.AutoAnalysis)
	assert.Equal(t, []string{"keys", "pki"}, edited.Tags)
	assert.Equal(t, []string{"security"}, edited.SuggestedNamespaces)

	empty := "  "
	_, err = h.store.EditPending(ctx, item.ID, curation.Updates{Body: &empty})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = h.store.Reject(ctx, item.ID, "bob", "")
	require.NoError(t, err)
	_, err = h.store.EditPending(ctx, item.ID, curation.Updates{Title: &title})
	var ist *curation.InvalidStateTransitionError
	require.ErrorAs(t, err, &ist)
	assert.Equal(t, types.StatusRejected, ist.Status)

	_, err = h.store.EditPending(ctx, "missing", curation.Updates{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var ids []string
	for _, body := range []string{"first body", "second body", "third body"} {
		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: body, Body: body, Namespaces: []string{"docs"}})
		require.NoError(t, err)
		ids = append(ids, item.ID)
		h.clock.Advance(time.Second)
	}
	_, err := h.store.Reject(ctx, ids[1], "bob", "off topic")
	require.NoError(t, err)

	pending, err := h.store.ListPending(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, pending.Total)
	assert.Equal(t, ids[0], pending.Items[0].ID, "pending lists oldest first")

	history, err := h.store.ListHistory(ctx, storage.ListOptions{ReviewedBy: "bob"})
	require.NoError(t, err)
	require.Equal(t, 1, history.Total)
	assert.Equal(t, ids[1], history.Items[0].ID)

	history, err = h.store.ListHistory(ctx, storage.ListOptions{Statuses: []types.CurationStatus{types.StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total, "history never includes pending")

	all, err := h.store.ListAll(ctx, storage.ListOptions{Namespace: "docs", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Items, 2)
	assert.True(t, all.HasMore)

	_, err = h.store.GetByID(ctx, "missing")
	var nf *curation.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
