// Package frequency counts how often semantically equivalent text is seen,
// with an exponential decay applied lazily at read time.
package frequency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/metrics"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const (
	// MatchThreshold is the similarity at which two texts share a record.
	MatchThreshold = 0.92

	// StaleAfter is the inactivity period after which low-value records are purged.
	StaleAfter = 90 * 24 * time.Hour

	// PurgeBelowHits protects records seen at least this often from purging.
	PurgeBelowHits = 2
)

// ErrNotFound is returned by GetFrequency when no record matches.
var ErrNotFound = errors.New("frequency record not found")

// Frequency is the read model of one record.
type Frequency struct {
	RecordID       string
	HitCount int

	// EffectiveCount is the unrounded decayed count the decision engine
	// compares; RoundedCount is the same value rounded for display.
	EffectiveCount float64
	RoundedCount   int

	DaysSinceFirst float64
	DaysSinceLast  float64
	Similarity     float64
}

// SweepResult reports what a sweep changed.
type SweepResult struct {
	Scanned int
	Decayed int
	Purged  int
}

// Tracker records and reads query frequency.
type Tracker struct {
	store    storage.FrequencyStore
	embedder llm.Embedder
	decay    *Decay
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	// One lock per namespace scope keeps find-then-insert from creating
	// two records for one cluster within this process.
	locks sync.Map
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithDecay overrides the decay function.
func WithDecay(d *Decay) Option {
	return func(t *Tracker) { t.decay = d }
}

// WithMetrics records sweep counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a Tracker.
func NewTracker(store storage.FrequencyStore, embedder llm.Embedder, logger logrus.FieldLogger, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		embedder: embedder,
		decay:    NewDecay(),
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records one sighting of text. Failures are logged and swallowed.
func (t *Tracker) Track(ctx context.Context, text, namespace, correlationID string) {
	if err := t.TrackSync(ctx, text, namespace, correlationID); err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"operation":      "frequency_track",
			"namespace":      namespace,
			"correlation_id": correlationID,
		}).Warn("frequency tracking failed")
	}
}

// TrackSync is Track with the error returned.
func (t *Tracker) TrackSync(ctx context.Context, text, namespace, correlationID string) error {
	normalized, hash := normalize.Content(text)
	if normalized == "" {
		return fmt.Errorf("%w: empty text", storage.ErrInvalidInput)
	}

	embedding, err := t.embedder.EmbedText(ctx, normalized)
	if err != nil {
		return fmt.Errorf("failed to embed query text: %w", err)
	}

	mu := t.lock(namespace)
	mu.Lock()
	defer mu.Unlock()

	now := t.now().UTC()

	rec, sim, err := t.store.FindNearest(ctx, embedding, namespace)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to search frequency records: %w", err)
	}
	if rec != nil && sim >= MatchThreshold {
		if err := t.store.RecordHit(ctx, rec.ID, now, correlationID); err != nil {
			return fmt.Errorf("failed to record hit: %w", err)
		}
		return nil
	}

	if err := t.store.Insert(ctx, &types.QueryFrequencyRecord{
		ID:                uuid.NewString(),
		Hash:              hash,
		NormalizedText:    normalized,
		Embedding:         embedding,
		HitCount:          1,
		Namespace:         namespace,
		FirstSeenAt:       now,
		LastSeenAt:        now,
		DecayedCount:      1,
		LastCorrelationID: correlationID,
	}); err != nil {
		return fmt.Errorf("failed to insert frequency record: %w", err)
	}
	return nil
}

// GetFrequency returns the decayed frequency of the record matching text.
func (t *Tracker) GetFrequency(ctx context.Context, text, namespace string) (*Frequency, error) {
	normalized := normalize.Normalize(text)
	if normalized == "" {
		return nil, ErrNotFound
	}

	embedding, err := t.embedder.EmbedText(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}

	rec, sim, err := t.store.FindNearest(ctx, embedding, namespace)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search frequency records: %w", err)
	}
	if sim < MatchThreshold {
		return nil, ErrNotFound
	}

	now := t.now()
	effective := t.decay.EffectiveCount(rec, now)
	return &Frequency{
		RecordID:       rec.ID,
		HitCount:       rec.HitCount,
		EffectiveCount: effective,
		RoundedCount:   Rounded(effective),
		DaysSinceFirst: DaysSince(rec.FirstSeenAt, now),
		DaysSinceLast:  DaysSince(rec.LastSeenAt, now),
		Similarity:     sim,
	}, nil
}

// Sweep persists decayed counts and purges records inactive for longer
// than StaleAfter with fewer than PurgeBelowHits hits. It is idempotent.
func (t *Tracker) Sweep(ctx context.Context) (*SweepResult, error) {
	now := t.now().UTC()
	log := t.logger.WithField("operation", "frequency_sweep")

	records, err := t.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list frequency records: %w", err)
	}

	res := &SweepResult{Scanned: len(records)}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		next := t.decay.EffectiveCount(rec, now)
		if !needsWriteBack(rec.DecayedCount, next) {
			continue
		}
		if err := t.store.SetDecayedCount(ctx, rec.ID, next); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return res, fmt.Errorf("failed to persist decayed count: %w", err)
		}
		res.Decayed++
	}

	purged, err := t.store.DeleteStale(ctx, now.Add(-StaleAfter), PurgeBelowHits)
	if err != nil {
		return res, fmt.Errorf("failed to purge stale records: %w", err)
	}
	res.Purged = purged

	t.metrics.FrequencySweep(res.Decayed, res.Purged)
	log.WithFields(logrus.Fields{
		"scanned": res.Scanned,
		"decayed": res.Decayed,
		"purged":  res.Purged,
	}).Info("frequency sweep complete")
	return res, nil
}

func (t *Tracker) lock(namespace string) *sync.Mutex {
	mu, _ := t.locks.LoadOrStore(namespace, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
