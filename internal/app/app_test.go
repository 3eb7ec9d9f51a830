package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/postgres"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/testutil"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const approveVerdict = `{"score": 92, "recommendation": "approve", "reasoning": "clear runbook", "flags": [], "suggested_edits": []}`

func newApp(t *testing.T, mutate func(*config.Config)) (*app.App, *testutil.Generator) {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.DataPath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	emb := testutil.NewEmbedder()
	emb.Default = []float64{1, 0}
	curator := testutil.NewGenerator(approveVerdict)

	a, err := app.New(context.Background(), cfg, app.Options{
		Registerer: prometheus.NewRegistry(),
		Logger:     logging.Discard(),
		Embedder:   emb.Provider(),
		Curator:    curator,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, curator
}

func TestApp_SubmitAutoApprovesAndPublishes(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t, nil)

	item, err := a.Store.Submit(ctx, curation.SubmitRequest{
		Title:      "Rolling deploys",
		Body:       "Drain traffic from a node before restarting it.",
		Namespaces: []string{"ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, item.Status)
	assert.Equal(t, curation.AutoReviewer, item.ReviewedBy)
	require.NotEmpty(t, item.PublishedDocumentID)

	doc, err := a.Backend.Documents().Get(ctx, item.PublishedDocumentID)
	require.NoError(t, err)
	nsID, err := a.Namespaces.Get(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, nsID, doc.NamespaceID)

	require.NotNil(t, a.Indexer)
	hits, err := a.SQLite.KnowledgeIndex().Search(ctx, "traffic", "ops", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = a.Store.Submit(ctx, curation.SubmitRequest{
		Title: "again",
		Body:  "Drain traffic from a node before restarting it.",
	})
	var dup *curation.DuplicateContentError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, doc.ID, dup.MatchedID)
}

func TestApp_PostgresIndexesApprovals(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	ctx := context.Background()
	b, err := postgres.Open(dsn, nil)
	require.NoError(t, err)
	_, err = b.DB().ExecContext(ctx, "TRUNCATE TABLE curation_items, published_documents, query_frequency, knowledge_index")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	a, _ := newApp(t, func(c *config.Config) {
		c.Storage.Engine = "postgres"
		c.Storage.PostgresDSN = dsn
	})
	idx, ok := a.Indexer.(*postgres.KnowledgeIndex)
	require.True(t, ok, "postgres engine wires its own index")

	token := fmt.Sprintf("zqmarker%d", time.Now().UnixNano())
	item, err := a.Store.Submit(ctx, curation.SubmitRequest{
		Title:      "Cutover " + token,
		Body:       "Switch the load balancer to the green pool during " + token + ".",
		Namespaces: []string{"ops"},
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusApproved, item.Status)

	hits, err := idx.Search(ctx, token, "ops", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, item.PublishedDocumentID, hits[0].DocumentID)
}

func TestApp_CuratorProfileFile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "curator.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("name: editorial\ninstructions: Only publish runbooks.\n"), 0o644))

	a, curator := newApp(t, func(c *config.Config) { c.Curation.CuratorProfilePath = profile })

	_, err := a.Store.Submit(context.Background(), curation.SubmitRequest{Body: "Rotate the pager weekly."})
	require.NoError(t, err)

	calls := curator.Calls()
	require.NotEmpty(t, calls)
	assert.True(t, strings.HasPrefix(calls[len(calls)-1].SystemPrompt, "Only publish runbooks."))
}

func TestApp_PolicyFileAndWatch(t *testing.T) {
	policy := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("min_approval_score: 95\nmax_reject_score: 10\n"), 0o644))

	a, _ := newApp(t, func(c *config.Config) {
		c.Curation.PolicyPath = policy
		c.Curation.WatchPolicy = true
	})
	require.NoError(t, a.WatchPolicy())
	assert.Equal(t, 95.0, a.Engine.Policy().MinApprovalScore)

	item, err := a.Store.Submit(context.Background(), curation.SubmitRequest{Body: "Score 92 is below the stricter bar."})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, item.Status)
}

func TestApp_BackupService(t *testing.T) {
	a, _ := newApp(t, nil)

	svc, err := a.BackupService()
	require.NoError(t, err)

	res, err := svc.BackupNow(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, a.Config.BackupDir(), filepath.Dir(res.Path))
}

func TestApp_InvalidPolicy(t *testing.T) {
	policy := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("min_approval_score: 10\nmax_reject_score: 50\n"), 0o644))

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.DataPath = t.TempDir()
	cfg.Curation.PolicyPath = policy

	_, err = app.New(context.Background(), cfg, app.Options{Logger: logging.Discard()})
	assert.Error(t, err)
}
