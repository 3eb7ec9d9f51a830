package frequency

import (
	"math"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const (
	// DecayBase is the per-day retention factor of a hit count.
	DecayBase = 0.95

	// decayWriteThreshold is the minimum change a sweep must see before it
	// writes a decayed count back.
	decayWriteThreshold = 0.001
)

// Decay computes effective counts as hitCount * base^daysSinceLast.
type Decay struct {
	base float64
}

// NewDecay returns a Decay with DecayBase.
func NewDecay() *Decay {
	return &Decay{base: DecayBase}
}

// NewDecayWithBase returns a Decay with a custom base. base must be in
// (0, 1]; otherwise DecayBase is used.
func NewDecayWithBase(base float64) *Decay {
	if base <= 0 || base > 1 {
		base = DecayBase
	}
	return &Decay{base: base}
}

// DaysSince returns fractional days from t to now, never negative.
func DaysSince(t, now time.Time) float64 {
	days := now.Sub(t).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// EffectiveCount returns the decayed hit count of rec at now. The value is
// not rounded: 10 hits last seen 14 days ago give 4.877, and the reuse gate
// compares that value against its threshold. Rounded gives the nearest
// whole count for display.
func (d *Decay) EffectiveCount(rec *types.QueryFrequencyRecord, now time.Time) float64 {
	return float64(rec.HitCount) * math.Pow(d.base, DaysSince(rec.LastSeenAt, now))
}

// Rounded returns count rounded half away from zero.
func Rounded(count float64) int {
	return int(math.Round(count))
}

// needsWriteBack reports whether a sweep should persist next over stored.
func needsWriteBack(stored, next float64) bool {
	return math.Abs(next-stored) >= decayWriteThreshold
}
