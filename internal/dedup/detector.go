// Package dedup implements the three-tier duplicate detector: exact
// fingerprint match, embedding similarity, then language-model adjudication
// for the ambiguous band. The detector is read-only.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/metrics"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

const (
	// DuplicateThreshold is the similarity at or above which content is a near-exact duplicate.
	DuplicateThreshold = 0.95

	// CandidateThreshold is the lower bound of the adjudication band.
	CandidateThreshold = 0.82

	// maxAdjudicationRunes truncates each text sent to the adjudicator.
	maxAdjudicationRunes = 4000
)

// Tier names which stage produced a verdict.
type Tier string

const (
	TierNone         Tier = ""
	TierExact        Tier = "exact"
	TierSemantic     Tier = "semantic"
	TierAdjudication Tier = "adjudication"
)

// CheckRequest is one duplicate check.
type CheckRequest struct {
	Body           string
	Fingerprint    string
	NormalizedBody string

	// Namespace scopes the semantic tier. Empty searches every namespace.
	Namespace string

	// PolicyNamespace selects the adjudication fail mode when it differs
	// from the search scope. Empty means Namespace.
	PolicyNamespace string

	// ExcludeID skips the item being re-verified.
	ExcludeID string

	// Embedding, when already known, skips the embedding call.
	Embedding []float64

	// PublishedOnly restricts every tier to published documents.
	PublishedOnly bool
}

// Verdict is the outcome of a check.
type Verdict struct {
	IsDuplicate  bool
	IsPending    bool // the match is a queue item, not a published document
	MatchedID    string
	MatchedTitle string
	MatchedBody  string
	Similarity   float64
	Tier         Tier

	// Embedding is whatever the check computed or was given, for persistence.
	Embedding []float64

	// Candidate is the best match in the adjudication band that was judged
	// not to be a duplicate. Nil otherwise.
	Candidate *storage.SimilarityMatch

	// Degraded is set when a tier was skipped because a dependency failed.
	Degraded bool
}

// Config tunes the detector.
type Config struct {
	DuplicateThreshold float64
	CandidateThreshold float64

	// FailClosed reports whether adjudication failures in namespace should
	// count as duplicates. Nil means fail open everywhere.
	FailClosed func(namespace string) bool
}

// DefaultConfig returns the standard thresholds, failing open.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: DuplicateThreshold,
		CandidateThreshold: CandidateThreshold,
	}
}

// Detector runs the tiers in order and stops at the first positive.
type Detector struct {
	corpus      Corpus
	embedder    llm.Embedder
	adjudicator llm.TextGenerator
	cfg         Config
	logger      logrus.FieldLogger
	metrics     *metrics.Metrics
}

// NewDetector wires a detector. adjudicator may be nil, in which case
// candidates are resolved by the namespace fail mode alone.
func NewDetector(corpus Corpus, embedder llm.Embedder, adjudicator llm.TextGenerator, cfg Config, logger logrus.FieldLogger, m *metrics.Metrics) *Detector {
	if cfg.DuplicateThreshold == 0 {
		cfg.DuplicateThreshold = DuplicateThreshold
	}
	if cfg.CandidateThreshold == 0 {
		cfg.CandidateThreshold = CandidateThreshold
	}
	return &Detector{
		corpus:      corpus,
		embedder:    embedder,
		adjudicator: adjudicator,
		cfg:         cfg,
		logger:      logging.OrDiscard(logger),
		metrics:     m,
	}
}

// Check classifies req. Store failures are returned; embedding and
// adjudication failures degrade and are logged.
func (d *Detector) Check(ctx context.Context, req CheckRequest) (*Verdict, error) {
	log := d.logger.WithFields(logrus.Fields{
		"operation": "dedup_check",
		"namespace": req.Namespace,
	})

	// Tier 1: exact fingerprint
	if req.Fingerprint != "" {
		match, err := d.exact(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("exact duplicate lookup failed: %w", err)
		}
		if match != nil {
			log.WithFields(logrus.Fields{"tier": TierExact, "matched_id": match.ID}).Info("duplicate detected")
			d.metrics.Duplicate(string(TierExact))
			return verdictFor(match, TierExact, req.Embedding), nil
		}
	}

	// Tier 2: semantic similarity
	embedding := req.Embedding
	if len(embedding) == 0 && d.embedder != nil {
		var err error
		embedding, err = d.embedder.EmbedText(ctx, req.Body)
		if err != nil {
			log.WithError(err).Warn("embedding failed, skipping semantic tier")
			return &Verdict{Degraded: true}, nil
		}
	}
	if len(embedding) == 0 {
		return &Verdict{Degraded: true}, nil
	}

	best, err := d.nearest(ctx, embedding, req)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	if best == nil || best.Similarity < d.cfg.CandidateThreshold {
		return &Verdict{Embedding: embedding}, nil
	}
	if best.Similarity >= d.cfg.DuplicateThreshold {
		log.WithFields(logrus.Fields{
			"tier":       TierSemantic,
			"matched_id": best.ID,
			"similarity": best.Similarity,
		}).Info("duplicate detected")
		d.metrics.Duplicate(string(TierSemantic))
		return verdictFor(best, TierSemantic, embedding), nil
	}

	// Tier 3: adjudication of the candidate band
	same, degraded := d.adjudicate(ctx, req, best, log)
	if same {
		d.metrics.Duplicate(string(TierAdjudication))
		v := verdictFor(best, TierAdjudication, embedding)
		v.Degraded = degraded
		return v, nil
	}

	candidate := *best
	return &Verdict{Embedding: embedding, Similarity: best.Similarity, Candidate: &candidate, Degraded: degraded}, nil
}

func (d *Detector) exact(ctx context.Context, req CheckRequest) (*storage.SimilarityMatch, error) {
	match, err := d.corpus.ExactPublished(ctx, req.Fingerprint)
	if err != nil || match != nil || req.PublishedOnly {
		return match, err
	}
	return d.corpus.ExactPending(ctx, req.Fingerprint, req.ExcludeID)
}

// nearest returns the single most similar document or pending item.
func (d *Detector) nearest(ctx context.Context, embedding []float64, req CheckRequest) (*storage.SimilarityMatch, error) {
	opts := storage.SimilarityOptions{
		Namespace:     req.Namespace,
		MinSimilarity: d.cfg.CandidateThreshold,
		Limit:         1,
		ExcludeID:     req.ExcludeID,
	}

	matches, err := d.corpus.NearestPublished(ctx, embedding, opts)
	if err != nil {
		return nil, err
	}
	if !req.PublishedOnly {
		pending, err := d.corpus.NearestPending(ctx, embedding, opts)
		if err != nil {
			return nil, err
		}
		matches = append(matches, pending...)
	}

	matches = storage.SortMatches(matches, 1)
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// adjudicate asks the model whether the candidate carries the same
// information. The second result reports that the model could not answer
// and the namespace fail mode decided instead.
func (d *Detector) adjudicate(ctx context.Context, req CheckRequest, candidate *storage.SimilarityMatch, log logrus.FieldLogger) (bool, bool) {
	log = log.WithFields(logrus.Fields{
		"tier":       TierAdjudication,
		"matched_id": candidate.ID,
		"similarity": candidate.Similarity,
	})

	policyNs := req.PolicyNamespace
	if policyNs == "" {
		policyNs = req.Namespace
	}
	failClosed := d.cfg.FailClosed != nil && d.cfg.FailClosed(policyNs)

	if d.adjudicator == nil {
		log.WithField("fail_closed", failClosed).Warn("no adjudicator configured, applying fail mode")
		return failClosed, true
	}

	start := time.Now()
	reply, err := d.adjudicator.GenerateCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: llm.AdjudicationSystemPrompt,
		UserPrompt:   llm.AdjudicationPrompt(truncate(candidate.Body, maxAdjudicationRunes), truncate(req.Body, maxAdjudicationRunes)),
		MaxTokens:    200,
		Temperature:  0,
	})
	if err == nil {
		var verdict *llm.AdjudicationVerdict
		verdict, err = llm.ParseAdjudicationVerdict(reply)
		if err == nil {
			log.WithFields(logrus.Fields{
				"same_information": verdict.SameInformation,
				"reason":           verdict.Reason,
				"duration_ms":      time.Since(start).Milliseconds(),
			}).Info("adjudication complete")
			return verdict.SameInformation, false
		}
	}

	log.WithError(err).WithField("fail_closed", failClosed).Warn("adjudication failed, applying fail mode")
	return failClosed, true
}

func verdictFor(m *storage.SimilarityMatch, tier Tier, embedding []float64) *Verdict {
	return &Verdict{
		IsDuplicate:  true,
		IsPending:    m.Pending,
		MatchedID:    m.ID,
		MatchedTitle: m.Title,
		MatchedBody:  m.Body,
		Similarity:   m.Similarity,
		Tier:         tier,
		Embedding:    embedding,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
