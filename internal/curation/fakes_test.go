package curation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/dedup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/frequency"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/memstore"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/testutil"
)

type fakeIndexer struct {
	mu      sync.Mutex
	docs    map[string]string
	meta    map[string]storage.IndexMetadata
	removed []string
	fail    error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: map[string]string{}, meta: map[string]storage.IndexMetadata{}}
}

func (f *fakeIndexer) IndexDocument(_ context.Context, docID, content string, meta storage.IndexMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// A failing index still leaves a partial entry behind, like a real one might.
	f.docs[docID] = content
	f.meta[docID] = meta
	return f.fail
}

func (f *fakeIndexer) RemoveDocument(_ context.Context, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, docID)
	delete(f.meta, docID)
	f.removed = append(f.removed, docID)
	return nil
}

func (f *fakeIndexer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakeRegistry struct {
	mu    sync.Mutex
	names map[string]string
	fail  error
}

func (r *fakeRegistry) CreateNamespaceIfMissing(_ context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return "", r.fail
	}
	if r.names == nil {
		r.names = map[string]string{}
	}
	if id, ok := r.names[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("ns-%d", len(r.names)+1)
	r.names[name] = id
	return id, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	profile curation.CuratorProfile
	err     error
	calls   int
}

func (r *fakeResolver) ResolveCurator(context.Context) (curation.CuratorProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.profile, r.err
}

// verdict builds a curator reply.
func verdict(score float64, rec string, flags ...string) string {
	fl := "[]"
	if len(flags) > 0 {
		fl = `["` + flags[0] + `"]`
	}
	return fmt.Sprintf(`{"score": %v, "recommendation": %q, "reasoning": "test", "flags": %s, "suggested_edits": []}`, score, rec, fl)
}

type harness struct {
	store    *curation.Store
	backend  *memstore.Backend
	emb      *testutil.Embedder
	curator  *testutil.Generator
	indexer  *fakeIndexer
	registry *fakeRegistry
	clock    *testutil.Clock
}

type option func(*curation.Deps, *curation.Config)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{
		backend:  memstore.New(),
		emb:      testutil.NewEmbedder(),
		curator:  testutil.NewGenerator(verdict(60, "review")),
		indexer:  newFakeIndexer(),
		registry: &fakeRegistry{},
		clock:    testutil.NewClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
	}

	detector := dedup.NewDetector(
		&dedup.StoreCorpus{Documents: h.backend.Documents(), Curation: h.backend.Curation()},
		h.emb, nil, dedup.DefaultConfig(), nil, nil,
	)
	tracker := frequency.NewTracker(h.backend.Frequency(), h.emb, nil, frequency.WithClock(h.clock.Now))
	engine := decision.NewEngine(nil, tracker, h.backend.Documents(), nil, nil)

	deps := curation.Deps{
		Items:      h.backend.Curation(),
		Documents:  h.backend.Documents(),
		Detector:   detector,
		Frequency:  tracker,
		Engine:     engine,
		Embedder:   h.emb,
		Curator:    h.curator,
		Indexer:    h.indexer,
		Namespaces: h.registry,
	}
	cfg := curation.Config{AnalysisTimeout: time.Second, Now: h.clock.Now}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	store, err := curation.NewStore(deps, cfg)
	require.NoError(t, err)
	h.store = store
	return h
}
