package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/testutil"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.DataPath = t.TempDir()
	require.NoError(t, cfg.Validate())

	emb := testutil.NewEmbedder()
	emb.Default = []float64{0, 1}
	a, err := app.New(context.Background(), cfg, app.Options{
		Logger:   logging.Discard(),
		Embedder: emb.Provider(),
		Curator:  testutil.NewGenerator(`{"score": 60, "recommendation": "review"}`),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunCleanup(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer
	require.NoError(t, runCleanup(context.Background(), a, &out))
	assert.Contains(t, out.String(), "Deleted 0 item(s)")
}

func TestRunSweep(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Store.Submit(context.Background(), curation.SubmitRequest{Body: "How do I rotate keys?"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSweep(context.Background(), a, &out))
	assert.Contains(t, out.String(), "Scanned 1 record(s)")
}

func TestRunBackup(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer
	require.NoError(t, runBackup(context.Background(), a, &out))
	assert.Contains(t, out.String(), "verified=true")

	entries, err := os.ReadDir(a.Config.BackupDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunLoop_StopsWithContext(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		runLoop(ctx, a, config.MaintenanceConfig{Interval: 20 * time.Millisecond, BackupInterval: 50 * time.Millisecond})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	entries, err := os.ReadDir(a.Config.BackupDir())
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestBackupListCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_path: "+dir+"\n"), 0o644))

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "backup", "list"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No snapshots found")
}
