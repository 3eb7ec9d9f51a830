package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
)

func TestWriteStarterFiles(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, writeStarterFiles(&out, dir, false))
	assert.Contains(t, out.String(), "wrote")

	cfg, err := config.Load(filepath.Join(dir, "curation.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(dir, "policy.yaml"), cfg.Curation.PolicyPath)

	policy, err := decision.LoadPolicy(cfg.Curation.PolicyPath)
	require.NoError(t, err)
	assert.Equal(t, decision.DefaultPolicy().MinApprovalScore, policy.MinApprovalScore)

	out.Reset()
	require.NoError(t, writeStarterFiles(&out, dir, false))
	assert.Contains(t, out.String(), "kept")
}

func TestRunDoctor(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer ollama.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_path: "+filepath.Join(dir, "data")+"\nllm:\n  ollama_url: "+ollama.URL+"\n"), 0o644))

	checks := runDoctor(context.Background(), path, ollama.Client())
	var out bytes.Buffer
	require.NoError(t, reportChecks(&out, checks))
	assert.Contains(t, out.String(), "0 pending")
	assert.Contains(t, out.String(), "ollama")
}

func TestRunDoctor_BadPolicyFails(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("min_approval_score: 10\nmax_reject_score: 50\n"), 0o644))
	path := filepath.Join(dir, "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_path: "+dir+"\ncuration:\n  policy_path: "+policy+"\nllm:\n  ollama_url: http://127.0.0.1:1\n"), 0o644))

	err := reportChecks(&bytes.Buffer{}, runDoctor(context.Background(), path, http.DefaultClient))
	assert.ErrorContains(t, err, "failed")
}
