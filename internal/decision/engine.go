// Package decision turns a quality score, content flags, namespace policy
// and reuse signals into approve, reject or review. It performs no writes.
package decision

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/frequency"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/metrics"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// FrequencyReader is the read side of the frequency tracker.
type FrequencyReader interface {
	GetFrequency(ctx context.Context, text, namespace string) (*frequency.Frequency, error)
}

// ApprovedSearcher finds already published content.
type ApprovedSearcher interface {
	SearchSimilar(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error)
}

// Input is everything one decision looks at.
type Input struct {
	Score      float64
	Flags      []string
	Namespaces []string // first entry is the primary namespace
	QueryText  string
	Embedding  []float64 // content embedding for the reuse lookup; nil skips it
}

// Rule names the step that produced a decision.
type Rule string

const (
	RuleGreeting  Rule = "greeting"
	RuleSensitive Rule = "sensitive_flag"
	RuleMinScore  Rule = "min_approval_score"
	RuleMaxScore  Rule = "max_reject_score"
	RuleReuse     Rule = "reuse_gate"
	RuleDefault   Rule = "default_review"
)

// Decision is the engine's verdict.
type Decision struct {
	Action     types.Recommendation `json:"action"`
	Rule       Rule                 `json:"rule"`
	Reason     string               `json:"reason"`
	ConfigUsed Effective            `json:"config_used"`
}

// Engine evaluates the policy.
type Engine struct {
	policy    atomic.Pointer[Policy]
	frequency FrequencyReader
	approved  ApprovedSearcher
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
}

// NewEngine creates an Engine. A nil policy uses DefaultPolicy; nil
// frequency or approved disables the reuse gate.
func NewEngine(policy *Policy, freq FrequencyReader, approved ApprovedSearcher, logger logrus.FieldLogger, m *metrics.Metrics) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	e := &Engine{
		frequency: freq,
		approved:  approved,
		logger:    logging.OrDiscard(logger),
		metrics:   m,
	}
	e.policy.Store(policy)
	return e
}

// Policy returns the policy in use.
func (e *Engine) Policy() *Policy { return e.policy.Load() }

// SetPolicy swaps the policy. Decisions already running keep the old one.
func (e *Engine) SetPolicy(p *Policy) {
	if p == nil {
		p = DefaultPolicy()
	}
	e.policy.Store(p)
}

// Decide applies, in order: greeting fast path, sensitive flags, minimum
// approval score, maximum reject score, reuse gate, then review.
func (e *Engine) Decide(ctx context.Context, in Input) Decision {
	namespace := ""
	if len(in.Namespaces) > 0 {
		namespace = in.Namespaces[0]
	}
	policy := e.policy.Load()
	cfg := policy.For(namespace)

	d := e.decide(ctx, in, policy, cfg)
	d.ConfigUsed = cfg

	e.metrics.Decision(string(d.Action))
	e.logger.WithFields(logrus.Fields{
		"operation": "decide",
		"namespace": namespace,
		"score":     in.Score,
		"action":    d.Action,
		"rule":      d.Rule,
	}).Debug("decision made")
	return d
}

func (e *Engine) decide(ctx context.Context, in Input, policy *Policy, cfg Effective) Decision {
	if policy.IsGreeting(normalize.Normalize(in.QueryText)) {
		return Decision{Action: types.RecommendApprove, Rule: RuleGreeting, Reason: "conversational greeting"}
	}

	if flag, ok := intersect(in.Flags, cfg.SensitiveFlags); ok {
		return Decision{Action: types.RecommendReview, Rule: RuleSensitive, Reason: fmt.Sprintf("sensitive flag %q requires review", flag)}
	}

	if in.Score >= cfg.MinApprovalScore {
		return Decision{Action: types.RecommendApprove, Rule: RuleMinScore,
			Reason: fmt.Sprintf("score %.1f >= %.1f", in.Score, cfg.MinApprovalScore)}
	}

	if in.Score <= cfg.MaxRejectScore {
		return Decision{Action: types.RecommendReject, Rule: RuleMaxScore,
			Reason: fmt.Sprintf("score %.1f <= %.1f", in.Score, cfg.MaxRejectScore)}
	}

	if reason, ok := e.reuse(ctx, in, cfg); ok {
		return Decision{Action: types.RecommendApprove, Rule: RuleReuse, Reason: reason}
	}

	return Decision{Action: types.RecommendReview, Rule: RuleDefault,
		Reason: fmt.Sprintf("borderline score %.1f", in.Score)}
}

// reuse approves borderline content that answers a recurring question
// already covered by approved content in the same namespace.
func (e *Engine) reuse(ctx context.Context, in Input, cfg Effective) (string, bool) {
	if !cfg.ReuseEnabled || e.frequency == nil || e.approved == nil {
		return "", false
	}
	if in.QueryText == "" || len(in.Embedding) == 0 {
		return "", false
	}
	log := e.logger.WithFields(logrus.Fields{"operation": "reuse_gate", "namespace": cfg.Namespace})

	freq, err := e.frequency.GetFrequency(ctx, in.QueryText, cfg.Namespace)
	if err != nil {
		if !errors.Is(err, frequency.ErrNotFound) {
			log.WithError(err).Warn("frequency lookup failed, skipping reuse gate")
		}
		return "", false
	}
	// The unrounded count is compared: 2.99 does not meet a threshold of 3.
	if freq.EffectiveCount < cfg.ReuseMinFrequency {
		log.WithFields(logrus.Fields{
			"effective_count": freq.EffectiveCount,
			"rounded_count":   freq.RoundedCount,
		}).Debug("query not frequent enough for reuse")
		return "", false
	}

	matches, err := e.approved.SearchSimilar(ctx, in.Embedding, storage.SimilarityOptions{
		Namespace:     cfg.Namespace,
		MinSimilarity: cfg.ReuseMinSimilarity,
		Limit:         1,
	})
	if err != nil {
		log.WithError(err).Warn("approved content lookup failed, skipping reuse gate")
		return "", false
	}
	if len(matches) == 0 {
		return "", false
	}

	return fmt.Sprintf("recurring query (effective count %.2f) matches approved document %s at %.3f",
		freq.EffectiveCount, matches[0].ID, matches[0].Similarity), true
}

func intersect(flags, sensitive []string) (string, bool) {
	set := make(map[string]struct{}, len(sensitive))
	for _, s := range sensitive {
		set[s] = struct{}{}
	}
	for _, f := range normalizeFlags(flags) {
		if _, ok := set[f]; ok {
			return f, true
		}
	}
	return "", false
}
