package curation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/storagetest"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/testutil"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

func TestAutoAnalysis_ActsOnlyWhenSignalsAgree(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		status   types.CurationStatus
		executed types.Recommendation
	}{
		{"both approve", verdict(90, "approve"), types.StatusApproved, types.RecommendApprove},
		{"both reject", verdict(12, "reject"), types.StatusRejected, types.RecommendReject},
		{"engine approves, model rejects", verdict(90, "reject"), types.StatusPending, ""},
		{"engine rejects, model approves", verdict(12, "approve"), types.StatusPending, ""},
		{"borderline review", verdict(60, "review"), types.StatusPending, ""},
		{"sensitive flag", verdict(99, "approve", "medical"), types.StatusPending, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.curator.SetReply(tt.reply)

			item, err := h.store.Submit(context.Background(), curation.SubmitRequest{Title: "Topic", Body: "Body for " + tt.name})
			require.NoError(t, err)

			assert.Equal(t, tt.status, item.Status)
			require.NotNil(t, item.AutoAnalysis)
			switch tt.status {
			case types.StatusApproved:
				assert.Equal(t, curation.AutoReviewer, item.ReviewedBy)
				assert.NotEmpty(t, item.PublishedDocumentID)
				assert.Equal(t, 1, h.indexer.count())
			case types.StatusRejected:
				require.NotNil(t, item.ExpiresAt)
				assert.Equal(t, item.ReviewedAt.Add(types.RejectionRetention), *item.ExpiresAt)
			default:
				assert.Empty(t, item.ReviewedBy)
				assert.Zero(t, h.indexer.count())
			}
		})
	}
}

func TestAutoAnalysis_FallbackChain(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback model after curator failure", func(t *testing.T) {
		fallback := testutil.NewGenerator(verdict(65, "review"))
		fallback.Model = "general"
		h := newHarness(t, func(d *curation.Deps, _ *curation.Config) {
			d.Curator = testutil.FailingGenerator(testutil.ErrUnavailable)
			d.Fallback = fallback
		})

		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "fallback body"})
		require.NoError(t, err)
		assert.Equal(t, types.AnalysisSourceFallback, item.AutoAnalysis.Source)
		assert.Equal(t, "general", item.AutoAnalysis.Model)
		assert.Equal(t, 65.0, *item.QualityScore)
		require.Len(t, fallback.Calls(), 1)
		assert.Equal(t, llm.FallbackAnalysisSystemPrompt, fallback.Calls()[0].SystemPrompt)
	})

	t.Run("curator timeout falls through to synthetic verdict", func(t *testing.T) {
		h := newHarness(t, func(d *curation.Deps, c *curation.Config) {
			d.Curator = testutil.BlockingGenerator()
			d.Fallback = testutil.NewGenerator("not json at all")
			c.AnalysisTimeout = 20 * time.Millisecond
		})

		start := time.Now()
		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "slow body"})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)

		assert.Equal(t, types.StatusPending, item.Status)
		assert.Equal(t, types.AnalysisSourceSynthetic, item.AutoAnalysis.Source)
		assert.Equal(t, types.RecommendReview, item.AutoAnalysis.Recommendation)
		assert.Equal(t, curation.SyntheticScore, *item.QualityScore)
	})

	t.Run("no models configured", func(t *testing.T) {
		h := newHarness(t, func(d *curation.Deps, _ *curation.Config) { d.Curator = nil })

		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "unscored body"})
		require.NoError(t, err)
		assert.Equal(t, types.AnalysisSourceSynthetic, item.AutoAnalysis.Source)
		assert.Equal(t, types.StatusPending, item.Status)
	})
}

func TestAutoAnalysis_CuratorProfileIsCached(t *testing.T) {
	strict := testutil.NewGenerator(verdict(70, "review"))
	strict.Model = "strict-model"
	resolver := &fakeResolver{profile: curation.CuratorProfile{Name: "strict", Instructions: "Be strict.", Generator: strict}}
	h := newHarness(t, func(d *curation.Deps, _ *curation.Config) { d.Curators = resolver })
	ctx := context.Background()

	item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "profile body one"})
	require.NoError(t, err)
	assert.Equal(t, "strict-model", item.AutoAnalysis.Model)
	require.Len(t, strict.Calls(), 1)
	assert.True(t, strings.HasPrefix(strict.Calls()[0].SystemPrompt, "Be strict."))
	assert.Empty(t, h.curator.Calls())

	_, err = h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "profile body two"})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.calls)

	h.clock.Advance(curation.DefaultCuratorCacheTTL + time.Second)
	_, err = h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "profile body three"})
	require.NoError(t, err)
	assert.Equal(t, 2, resolver.calls)

	h.store.InvalidateCurator()
	_, err = h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "profile body four"})
	require.NoError(t, err)
	assert.Equal(t, 3, resolver.calls)
}

func TestAutoAnalysis_ResolverFailureUsesDefaultCurator(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("registry offline")}
	h := newHarness(t, func(d *curation.Deps, _ *curation.Config) { d.Curators = resolver })

	item, err := h.store.Submit(context.Background(), curation.SubmitRequest{Title: "T", Body: "resolver body"})
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisSourceCurator, item.AutoAnalysis.Source)
	assert.Len(t, h.curator.Calls(), 1)
}

func TestRunAutoAnalysis_OncePerItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := storagetest.NewItem("concurrent body", "docs", []float64{0, 0, 1})
	require.NoError(t, h.backend.Curation().Insert(ctx, item))

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	h.curator.SetRespond(func(context.Context, llm.CompletionRequest) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return verdict(95, "approve"), nil
	})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.store.RunAutoAnalysis(ctx, item.ID)
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		if err != nil {
			var ist *curation.InvalidStateTransitionError
			assert.ErrorAs(t, err, &ist)
		}
	}

	got, err := h.store.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Status)
}

func TestRunAutoAnalysis_BoundsConcurrency(t *testing.T) {
	h := newHarness(t, func(_ *curation.Deps, c *curation.Config) { c.MaxConcurrentAnalyses = 1 })
	ctx := context.Background()

	var active, peak atomic.Int32
	h.curator.SetRespond(func(context.Context, llm.CompletionRequest) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return verdict(60, "review"), nil
	})

	var ids []string
	for i := 0; i < 3; i++ {
		item := storagetest.NewItem(fmt.Sprintf("bounded body %d", i), "docs", nil)
		require.NoError(t, h.backend.Curation().Insert(ctx, item))
		ids = append(ids, item.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.store.RunAutoAnalysis(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestRunAutoAnalysis_RequiresPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "to reject"})
	require.NoError(t, err)
	_, err = h.store.Reject(ctx, item.ID, "bob", "")
	require.NoError(t, err)

	_, err = h.store.RunAutoAnalysis(ctx, item.ID)
	var ist *curation.InvalidStateTransitionError
	assert.ErrorAs(t, err, &ist)

	_, err = h.store.RunAutoAnalysis(ctx, "missing")
	var nf *curation.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// The third sighting of a recurring question is counted before the
// decision runs, so the reuse gate can approve it.
func TestAutoAnalysis_ReuseGateCountsCurrentSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const title = "How do I reset my password?"
	h.emb.Set("how do i reset my password", []float64{0, 0, 0, 1})

	require.NoError(t, h.backend.Documents().Create(ctx, &types.PublishedDocument{
		ID: "doc-reset", Title: "Password reset", Body: "Use the account page to reset a password.",
		Namespace: "support", ContentHash: "reset-hash", Embedding: []float64{1, 0, 0, 0}, CreatedAt: h.clock.Now(),
	}))

	bodies := []string{"Open settings and pick reset.", "Ask an admin for a reset link.", "Reset it from the account security page."}
	h.emb.Set(bodies[0], []float64{0, 1, 0, 0})
	h.emb.Set(bodies[1], []float64{0, 0, 1, 0})
	h.emb.Set(bodies[2], []float64{0.9, 0.4359, 0, 0})
	h.curator.SetReply(verdict(55, "approve"))

	var last *types.CurationItem
	for i, body := range bodies {
		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: title, Body: body, Namespaces: []string{"support"}})
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, types.StatusPending, item.Status, "sighting %d", i+1)
		}
		last = item
	}

	assert.Equal(t, types.StatusApproved, last.Status)
	assert.Contains(t, last.DecisionReason, "doc-reset")

	doc, err := h.backend.Documents().Get(ctx, last.PublishedDocumentID)
	require.NoError(t, err)
	assert.Equal(t, bodies[2], doc.Body)
	assert.Empty(t, doc.AbsorbedFrom)
}

func TestAutoAnalysis_UsesInjectedEngine(t *testing.T) {
	policy, err := decision.ParsePolicy([]byte("min_approval_score: 95\n"))
	require.NoError(t, err)
	h := newHarness(t, func(d *curation.Deps, _ *curation.Config) {
		d.Engine = decision.NewEngine(policy, nil, nil, nil, nil)
	})
	h.curator.SetReply(verdict(90, "approve"))

	item, err := h.store.Submit(context.Background(), curation.SubmitRequest{Title: "T", Body: "strict namespace body"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, item.Status)
}

func TestSubmit_AnalysisSharesOneBudget(t *testing.T) {
	const budget = 200 * time.Millisecond
	h := newHarness(t, func(d *curation.Deps, c *curation.Config) {
		d.Curator = testutil.BlockingGenerator()
		d.Fallback = testutil.BlockingGenerator()
		c.AnalysisTimeout = budget
		c.MaxConcurrentAnalyses = 1
	})
	ctx := context.Background()

	t.Run("curator and fallback both hang", func(t *testing.T) {
		start := time.Now()
		item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: "silent models body"})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), budget+budget/2)
		assert.Equal(t, types.StatusPending, item.Status)
		assert.Equal(t, types.AnalysisSourceSynthetic, item.AutoAnalysis.Source)
	})

	t.Run("second submission waits for a slot within its budget", func(t *testing.T) {
		bodies := []string{"apples ripen slowly in cold orchards", "river ferries stop running after dusk"}
		elapsed := make([]time.Duration, len(bodies))
		items := make([]*types.CurationItem, len(bodies))

		var wg sync.WaitGroup
		for i, body := range bodies {
			wg.Add(1)
			go func(i int, body string) {
				defer wg.Done()
				start := time.Now()
				item, err := h.store.Submit(ctx, curation.SubmitRequest{Title: "T", Body: body})
				elapsed[i] = time.Since(start)
				assert.NoError(t, err)
				items[i] = item
			}(i, body)
		}
		wg.Wait()

		for i := range bodies {
			assert.Less(t, elapsed[i], budget+budget/2, "submission %d", i)
			require.NotNil(t, items[i])
			require.NotNil(t, items[i].AutoAnalysis)
			assert.Equal(t, types.AnalysisSourceSynthetic, items[i].AutoAnalysis.Source)
		}
	})
}

// cancelAwareItems fails writes on a cancelled context, like the SQL backends.
type cancelAwareItems struct {
	storage.CurationStore
}

func (c cancelAwareItems) Update(ctx context.Context, item *types.CurationItem, expected types.CurationStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.CurationStore.Update(ctx, item, expected)
}

func TestRunAutoAnalysis_PersistsAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	curator := &testutil.Generator{
		Model: "fake",
		Respond: func(callCtx context.Context, _ llm.CompletionRequest) (string, error) {
			cancel()
			<-callCtx.Done()
			return "", callCtx.Err()
		},
	}
	h := newHarness(t, func(d *curation.Deps, _ *curation.Config) {
		d.Items = cancelAwareItems{d.Items}
		d.Curator = curator
		d.Fallback = testutil.NewGenerator(verdict(90, "approve"))
	})

	item := storagetest.NewItem("client went away body", "docs", nil)
	require.NoError(t, h.backend.Curation().Insert(context.Background(), item))

	outcome, err := h.store.RunAutoAnalysis(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisSourceSynthetic, outcome.Analysis.Source)

	stored, err := h.backend.Curation().Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AutoAnalysis)
	assert.Equal(t, types.AnalysisSourceSynthetic, stored.AutoAnalysis.Source)
	assert.Equal(t, types.StatusPending, stored.Status)
	assert.Equal(t, curation.SyntheticScore, *stored.QualityScore)
}
