package backup_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/backup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/sqlite"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage/storagetest"
)

func TestService_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "curation.db")

	b, err := sqlite.Open(dbPath, nil)
	require.NoError(t, err)
	kept := storagetest.NewItem("kept in the snapshot", "ops", nil)
	require.NoError(t, b.Curation().Insert(ctx, kept))

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, err := backup.NewService(backup.Config{
		DBPath: dbPath,
		Dir:    filepath.Join(dir, "snapshots"),
		Verify: true,
		Now:    func() time.Time { return now },
	}, nil)
	require.NoError(t, err)

	res, err := svc.BackupNow(ctx)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Positive(t, res.Size)

	count, size, err := svc.Usage()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, res.Size, size)

	lost := storagetest.NewItem("written after the snapshot", "ops", nil)
	require.NoError(t, b.Curation().Insert(ctx, lost))
	require.NoError(t, b.Close())

	require.NoError(t, svc.Restore(ctx, res.Path))

	b, err = sqlite.Open(dbPath, nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	_, err = b.Curation().Get(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = b.Curation().Get(ctx, lost.ID)
	assert.Error(t, err)
}

func TestNewService_Validation(t *testing.T) {
	_, err := backup.NewService(backup.Config{Dir: t.TempDir()}, nil)
	assert.Error(t, err)

	_, err = backup.NewService(backup.Config{DBPath: "x.db"}, nil)
	assert.Error(t, err)
}

func TestService_MissingDatabase(t *testing.T) {
	dir := t.TempDir()
	svc, err := backup.NewService(backup.Config{DBPath: filepath.Join(dir, "none.db"), Dir: dir}, nil)
	require.NoError(t, err)

	_, err = svc.BackupNow(context.Background())
	assert.Error(t, err)
}
