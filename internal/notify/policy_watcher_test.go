package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
)

// writePolicy replaces path atomically so the watcher never sees a
// truncated file.
func writePolicy(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestPolicyWatcher_ReloadsValidRevisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	writePolicy(t, path, "min_approval_score: 80\nmax_reject_score: 30\n")

	received := make(chan *decision.Policy, 4)
	pw := NewPolicyWatcher(path, func(p *decision.Policy) { received <- p }, nil)
	require.NoError(t, pw.Start())
	defer pw.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writePolicy(t, path, "min_approval_score: 70\nmax_reject_score: 20\n")

	select {
	case p := <-received:
		assert.Equal(t, 70.0, p.MinApprovalScore)
		assert.Equal(t, 20.0, p.MaxRejectScore)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for policy reload")
	}
}

func TestPolicyWatcher_IgnoresOtherFilesAndInvalidPolicies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	writePolicy(t, path, "min_approval_score: 80\nmax_reject_score: 30\n")

	received := make(chan *decision.Policy, 4)
	pw := NewPolicyWatcher(path, func(p *decision.Policy) { received <- p }, nil)
	require.NoError(t, pw.Start())
	defer pw.Stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("min_approval_score: 90\n"), 0o644))
	writePolicy(t, path, "min_approval_score: 20\nmax_reject_score: 90\n")

	select {
	case p := <-received:
		t.Fatalf("unexpected reload: %+v", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPolicyWatcher_StartErrors(t *testing.T) {
	assert.Error(t, NewPolicyWatcher("", nil, nil).Start())
	assert.Error(t, NewPolicyWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil).Start())

	// Stop without Start is a no-op.
	NewPolicyWatcher("x", nil, nil).Stop()
}
