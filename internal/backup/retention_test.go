package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func writeSnapshot(t *testing.T, dir string, at time.Time) string {
	t.Helper()
	path := filepath.Join(dir, filePrefix+at.Format(fileLayout)+fileSuffix)
	require.NoError(t, os.WriteFile(path, []byte("sqlite"), 0o644))
	return path
}

func TestListSnapshots(t *testing.T) {
	dir := t.TempDir()
	older := writeSnapshot(t, dir, base.Add(-2*time.Hour))
	newer := writeSnapshot(t, dir, base.Add(-time.Hour))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.db"), 0o755))

	got, err := listSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].Path)
	assert.Equal(t, older, got[1].Path)
	assert.True(t, got[0].Timestamp.Equal(base.Add(-time.Hour)))

	_, err = listSnapshots(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSnapshotTime_FallsBackToModTime(t *testing.T) {
	fallback := base.Add(-time.Minute)
	assert.True(t, snapshotTime("manual.db", fallback).Equal(fallback))
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	policy := RetentionPolicy{Hourly: 2, Daily: 1, Weekly: 1, Monthly: 1}

	keepHourly := []string{
		writeSnapshot(t, dir, base.Add(-1*time.Hour)),
		writeSnapshot(t, dir, base.Add(-2*time.Hour)),
	}
	dropHourly := writeSnapshot(t, dir, base.Add(-3*time.Hour))
	keepDaily := writeSnapshot(t, dir, base.Add(-2*24*time.Hour))
	dropDaily := writeSnapshot(t, dir, base.Add(-3*24*time.Hour))
	keepWeekly := writeSnapshot(t, dir, base.Add(-10*24*time.Hour))
	keepMonthly := writeSnapshot(t, dir, base.Add(-60*24*time.Hour))
	ancient := writeSnapshot(t, dir, base.Add(-400*24*time.Hour))

	removed, err := applyRetention(dir, policy, base)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, p := range append(keepHourly, keepDaily, keepWeekly, keepMonthly) {
		assert.FileExists(t, p)
	}
	for _, p := range []string{dropHourly, dropDaily, ancient} {
		assert.NoFileExists(t, p)
	}
}

func TestApplyRetention_EmptyDir(t *testing.T) {
	removed, err := applyRetention(t.TempDir(), DefaultRetention(), base)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRetentionPolicy_Defaults(t *testing.T) {
	assert.Equal(t, DefaultRetention(), RetentionPolicy{}.withDefaults())
	assert.Equal(t, 3, RetentionPolicy{Hourly: 3}.withDefaults().Hourly)
}
