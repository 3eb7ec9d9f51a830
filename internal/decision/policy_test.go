package decision_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
)

func TestDefaultPolicy(t *testing.T) {
	p := decision.DefaultPolicy()

	require.NoError(t, p.Validate())
	assert.Equal(t, 80.0, p.MinApprovalScore)
	assert.Equal(t, 30.0, p.MaxRejectScore)
	assert.True(t, p.Reuse.Enabled)
	assert.False(t, p.FailClosed("anything"))
	assert.True(t, p.IsGreeting("hi there"))
	assert.False(t, p.IsGreeting(""))
}

func TestParsePolicy(t *testing.T) {
	p, err := decision.ParsePolicy([]byte(`
min_approval_score: 85
max_reject_score: 20
sensitive_flags: [PII, legal, pii]
reuse:
  enabled: true
  min_frequency: 5
  min_similarity: 0.9
adjudication_fail_closed: false
namespaces:
  compliance:
    adjudication_fail_closed: true
    max_reject_score: 40
`))
	require.NoError(t, err)

	assert.Equal(t, 85.0, p.MinApprovalScore)
	assert.Equal(t, []string{"pii", "legal"}, p.For("other").SensitiveFlags)
	assert.Equal(t, 5.0, p.For("other").ReuseMinFrequency)

	c := p.For("compliance")
	assert.Equal(t, 40.0, c.MaxRejectScore)
	assert.Equal(t, 85.0, c.MinApprovalScore)
	assert.True(t, p.FailClosed("compliance"))
	assert.False(t, p.FailClosed("other"))

	// Greeting patterns are still compiled when the file leaves them out.
	assert.True(t, p.IsGreeting("good evening"))
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := map[string]string{
		"overlapping thresholds": "min_approval_score: 50\nmax_reject_score: 60\n",
		"out of range":           "min_approval_score: 120\n",
		"bad override":           "namespaces:\n  x:\n    max_reject_score: 90\n",
		"bad similarity":         "reuse:\n  min_similarity: 1.5\n",
		"bad pattern":            "greeting_patterns: ['(']\n",
		"bad yaml":               "min_approval_score: [\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decision.ParsePolicy([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	p, err := decision.LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, decision.DefaultMinApprovalScore, p.MinApprovalScore)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_approval_score: 90\n"), 0o600))
	p, err = decision.LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.MinApprovalScore)

	_, err = decision.LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
