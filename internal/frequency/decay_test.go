package frequency

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

func TestEffectiveCount(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	d := NewDecay()

	cases := []struct {
		name     string
		hits     int
		daysAgo  float64
		expected float64
	}{
		{"just seen", 10, 0, 10},
		{"one day", 10, 1, 9.5},
		{"two weeks", 10, 14, 10 * math.Pow(0.95, 14)},
		{"future timestamp clamps", 3, -2, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &types.QueryFrequencyRecord{
				HitCount:   tc.hits,
				LastSeenAt: now.Add(-time.Duration(tc.daysAgo * 24 * float64(time.Hour))),
			}
			assert.InDelta(t, tc.expected, d.EffectiveCount(rec, now), 1e-9)
		})
	}
}

func TestEffectiveCount_TenHitsTwoWeeks(t *testing.T) {
	now := time.Now()
	rec := &types.QueryFrequencyRecord{HitCount: 10, LastSeenAt: now.Add(-14 * 24 * time.Hour)}

	got := NewDecay().EffectiveCount(rec, now)
	assert.InDelta(t, 4.877, got, 0.001)
	assert.Less(t, got, 5.0)
}

func TestRounded(t *testing.T) {
	assert.Equal(t, 5, Rounded(4.877))
	assert.Equal(t, 4, Rounded(4.49))
	assert.Equal(t, 3, Rounded(2.5))
	assert.Equal(t, 0, Rounded(0.2))
}

func TestNewDecayWithBase(t *testing.T) {
	assert.Equal(t, DecayBase, NewDecayWithBase(0).base)
	assert.Equal(t, DecayBase, NewDecayWithBase(1.5).base)
	assert.Equal(t, 0.5, NewDecayWithBase(0.5).base)
}

func TestNeedsWriteBack(t *testing.T) {
	assert.False(t, needsWriteBack(4.8770, 4.8775))
	assert.True(t, needsWriteBack(5, 4.877))
}
