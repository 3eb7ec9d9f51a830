package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_path: "+dir+"\nserver:\n  addr: 127.0.0.1:0\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Server.Addr)
	assert.Equal(t, dir, cfg.Storage.DataPath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  engine: mysql\n"), 0o644))

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRun_StopsWithContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curation.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  data_path: "+dir+"\nserver:\n  addr: 127.0.0.1:0\n  shutdown_timeout: 1s\nlogging:\n  level: error\n"), 0o644))
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
