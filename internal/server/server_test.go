package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/server"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/testutil"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// reviewVerdict keeps submitted items pending so the manual routes have work.
const reviewVerdict = `{"score": 60, "recommendation": "review", "reasoning": "needs a human", "flags": [], "suggested_edits": []}`

func newTestServer(t *testing.T, cfg server.Config) http.Handler {
	t.Helper()
	c, err := config.LoadConfig()
	require.NoError(t, err)
	c.Storage.DataPath = t.TempDir()
	require.NoError(t, c.Validate())

	reg := prometheus.NewRegistry()
	// No vectors: the semantic tier degrades and only exact duplicates match.
	emb := testutil.NewEmbedder()
	a, err := app.New(context.Background(), c, app.Options{
		Registerer: reg,
		Logger:     logging.Discard(),
		Embedder:   emb.Provider(),
		Curator:    testutil.NewGenerator(reviewVerdict),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	cfg.Gatherer = reg
	return server.New(a.Store, cfg, logging.Discard()).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func submit(t *testing.T, h http.Handler, body string) types.CurationItem {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/curation/items", map[string]interface{}{
		"title":      "Note",
		"body":       body,
		"namespaces": []string{"ops"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[types.CurationItem](t, rec)
}

func TestServer_SubmitApproveLifecycle(t *testing.T) {
	h := newTestServer(t, server.Config{})

	item := submit(t, h, "Restart the queue worker after a config change.")
	assert.Equal(t, types.StatusPending, item.Status)

	rec := do(t, h, http.MethodGet, "/api/curation/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[struct {
		Items []types.CurationItem `json:"items"`
		Total int                  `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, pending.Total)

	rec = do(t, h, http.MethodPost, "/api/curation/items/"+item.ID+"/approve", map[string]string{
		"reviewer": "alice",
		"note":     "looks right",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeBody[struct {
		Item                types.CurationItem `json:"item"`
		PublishedDocumentID string             `json:"published_document_id"`
	}](t, rec)
	assert.Equal(t, types.StatusApproved, approved.Item.Status)
	assert.Equal(t, "alice", approved.Item.ReviewedBy)
	assert.NotEmpty(t, approved.PublishedDocumentID)

	rec = do(t, h, http.MethodGet, "/api/curation/history?reviewed_by=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[struct {
		Total int `json:"total"`
	}](t, rec)
	assert.Equal(t, 1, history.Total)

	rec = do(t, h, http.MethodPost, "/api/curation/items/"+item.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_DuplicateSubmission(t *testing.T) {
	h := newTestServer(t, server.Config{})
	first := submit(t, h, "Pin the base image digest.")

	rec := do(t, h, http.MethodPost, "/api/curation/items", map[string]string{"body": "pin the BASE image digest"})
	require.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeBody[server.ErrorResponse](t, rec)
	assert.Equal(t, first.ID, errBody.Details["matched_id"])
	assert.Equal(t, true, errBody.Details["is_pending"])
}

func TestServer_RejectSetsExpiry(t *testing.T) {
	h := newTestServer(t, server.Config{})
	item := submit(t, h, "Use tabs, not spaces, in every YAML file.")

	req := httptest.NewRequest(http.MethodPost, "/api/curation/items/"+item.ID+"/reject", nil)
	req.Header.Set(server.ReviewerHeader, "bob")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rejected := decodeBody[types.CurationItem](t, rec)
	assert.Equal(t, types.StatusRejected, rejected.Status)
	assert.Equal(t, "bob", rejected.ReviewedBy)
	require.NotNil(t, rejected.ExpiresAt)
	require.NotNil(t, rejected.ReviewedAt)
	assert.WithinDuration(t, rejected.ReviewedAt.Add(types.RejectionRetention), *rejected.ExpiresAt, time.Second)
}

func TestServer_EditPending(t *testing.T) {
	h := newTestServer(t, server.Config{})
	item := submit(t, h, "Old body text.")

	rec := do(t, h, http.MethodPatch, "/api/curation/items/"+item.ID, map[string]interface{}{
		"title": "Renamed",
		"body":  "New body text.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[types.CurationItem](t, rec)
	assert.Equal(t, "Renamed", edited.Title)
	assert.NotEqual(t, item.ContentHash, edited.ContentHash)
}

func TestServer_Errors(t *testing.T) {
	h := newTestServer(t, server.Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing item", http.MethodGet, "/api/curation/items/nope", nil, http.StatusNotFound},
		{"empty body", http.MethodPost, "/api/curation/items", map[string]string{"body": "  "}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/curation/items", map[string]string{"content": "x"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/curation/items?status=archived", nil, http.StatusBadRequest},
		{"bad time filter", http.MethodGet, "/api/curation/history?changed_after=yesterday", nil, http.StatusBadRequest},
		{"publish missing", http.MethodPost, "/api/curation/items/nope/publish", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_RetentionHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, server.Config{})
	submit(t, h, "Keep pending items forever.")

	rec := do(t, h, http.MethodPost, "/api/curation/retention", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired_rejected":0,"past_ceiling":0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "curation_submissions_total"))
}

func TestServer_RateLimit(t *testing.T) {
	h := newTestServer(t, server.Config{RequestsPerSec: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/health", nil).Code)
}
