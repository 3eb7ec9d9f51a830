package curation

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const (
	// SyntheticScore is recorded when no model could analyze an item.
	SyntheticScore = 50.0

	maxPromptRunes = 8000
)

// AnalysisOutcome reports what one auto analysis did.
type AnalysisOutcome struct {
	Item     *types.CurationItem
	Analysis *types.AutoAnalysis
	Decision decision.Decision

	// Executed is the action carried out, or "" when the item was left pending.
	Executed types.Recommendation
}

// RunAutoAnalysis scores a pending item and lets the decision engine act
// on it. The item is approved or rejected only when the engine and the
// model recommend the same action; otherwise it stays pending. Concurrent
// calls for one item share a single run. Waiting for a slot and scoring
// together take at most Config.AnalysisTimeout.
func (s *Store) RunAutoAnalysis(ctx context.Context, id string) (*AnalysisOutcome, error) {
	v, err, _ := s.inflight.Do(id, func() (interface{}, error) {
		return s.runAutoAnalysis(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AnalysisOutcome), nil
}

func (s *Store) runAutoAnalysis(ctx context.Context, id string) (*AnalysisOutcome, error) {
	// Writes outlive the caller so an abandoned request still leaves its
	// analysis behind.
	persist := context.WithoutCancel(ctx)

	item, err := s.load(persist, id)
	if err != nil {
		return nil, err
	}
	if item.Status != types.StatusPending {
		return nil, &InvalidStateTransitionError{ID: id, Operation: "analyze", Status: item.Status}
	}
	log := s.logger.WithFields(logrus.Fields{"operation": "auto_analysis", "item_id": id})

	// One budget covers the wait for a slot and the whole model chain.
	budget, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	start := s.cfg.Now()
	var analysis *types.AutoAnalysis
	if err := s.analyses.Acquire(budget, 1); err != nil {
		log.WithError(err).Warn("no analysis slot within budget")
		analysis = s.syntheticAnalysis(log)
	} else {
		analysis = s.analyze(budget, item, log)
		s.analyses.Release(1)
	}
	s.metrics.Analysis(analysis.Source, s.cfg.Now().Sub(start))
	ctx = persist

	dec := s.engine.Decide(ctx, decision.Input{
		Score:      analysis.Score,
		Flags:      analysis.Flags,
		Namespaces: item.SuggestedNamespaces,
		QueryText:  queryText(item),
		Embedding:  item.Embedding,
	})

	score := analysis.Score
	item.QualityScore = &score
	item.AutoAnalysis = analysis
	item.DecisionReason = dec.Reason
	item.UpdatedAt = s.now()
	if err := s.items.Update(ctx, item, types.StatusPending); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Decided by someone else while the model was running.
			log.Info("item changed during analysis, discarding result")
			current, lerr := s.load(ctx, id)
			if lerr != nil {
				return nil, lerr
			}
			return &AnalysisOutcome{Item: current, Analysis: analysis, Decision: dec}, nil
		}
		return nil, s.transitionError(ctx, err, id, "analyze")
	}

	outcome := &AnalysisOutcome{Item: item, Analysis: analysis, Decision: dec}
	log = log.WithFields(logrus.Fields{
		"score":          analysis.Score,
		"source":         analysis.Source,
		"recommendation": analysis.Recommendation,
		"action":         dec.Action,
		"rule":           dec.Rule,
	})

	if dec.Action == types.RecommendReview || dec.Action != analysis.Recommendation {
		log.Info("left pending for review")
		return outcome, nil
	}

	note := "auto: " + dec.Reason
	switch dec.Action {
	case types.RecommendApprove:
		res, err := s.approve(ctx, item.Clone(), AutoReviewer, note)
		if err != nil {
			log.WithError(err).Warn("auto approval failed, item left pending")
			return s.reloadOutcome(ctx, outcome)
		}
		outcome.Item = res.Item
	case types.RecommendReject:
		rejected, err := s.reject(ctx, item.Clone(), AutoReviewer, note)
		if err != nil {
			log.WithError(err).Warn("auto rejection failed, item left pending")
			return s.reloadOutcome(ctx, outcome)
		}
		outcome.Item = rejected
	}
	outcome.Executed = dec.Action
	log.Info("auto decision executed")
	return outcome, nil
}

func (s *Store) reloadOutcome(ctx context.Context, outcome *AnalysisOutcome) (*AnalysisOutcome, error) {
	current, err := s.load(ctx, outcome.Item.ID)
	if err != nil {
		return nil, err
	}
	outcome.Item = current
	return outcome, nil
}

// analyze tries the curator model, then the fallback model, and finally
// settles for a synthetic review verdict. It always returns an analysis.
// Both models share the deadline on ctx; the fallback is skipped once it
// has passed.
func (s *Store) analyze(ctx context.Context, item *types.CurationItem, log logrus.FieldLogger) *types.AutoAnalysis {
	body := truncateRunes(item.Body, maxPromptRunes)

	profile := s.resolveCurator(ctx, log)
	curator := profile.Generator
	if curator == nil {
		curator = s.curator
	}
	if curator != nil {
		req := llm.CompletionRequest{
			SystemPrompt: llm.CuratorSystemPrompt(profile.Instructions),
			UserPrompt:   llm.CuratorAnalysisPrompt(item.Title, body, item.Tags, item.SuggestedNamespaces),
			MaxTokens:    800,
			Temperature:  0.2,
		}
		a, err := s.score(ctx, curator, "curator_analysis", req)
		if err == nil {
			a.Source = types.AnalysisSourceCurator
			return a
		}
		log.WithError(err).WithFields(logrus.Fields{
			"curator": profile.Name,
			"timeout": timedOut(err),
		}).Warn("curator analysis failed, trying fallback")
	}

	if s.fallback != nil && ctx.Err() == nil {
		req := llm.CompletionRequest{
			SystemPrompt: llm.FallbackAnalysisSystemPrompt,
			UserPrompt:   llm.FallbackAnalysisPrompt(item.Title, body),
			MaxTokens:    300,
		}
		a, err := s.score(ctx, s.fallback, "fallback_analysis", req)
		if err == nil {
			a.Source = types.AnalysisSourceFallback
			return a
		}
		log.WithError(err).WithField("timeout", timedOut(err)).Warn("fallback analysis failed")
	}

	return s.syntheticAnalysis(log)
}

func (s *Store) syntheticAnalysis(log logrus.FieldLogger) *types.AutoAnalysis {
	log.Warn("no model produced an analysis, using synthetic review verdict")
	return &types.AutoAnalysis{
		Score:          SyntheticScore,
		Recommendation: types.RecommendReview,
		Reasoning:      "automatic analysis unavailable; needs human review",
		Source:         types.AnalysisSourceSynthetic,
		AnalyzedAt:     s.now(),
	}
}

func (s *Store) score(ctx context.Context, gen llm.TextGenerator, operation string, req llm.CompletionRequest) (*types.AutoAnalysis, error) {
	reply, err := llm.WithTimeout(ctx, operation, s.cfg.AnalysisTimeout, func(ctx context.Context) (string, error) {
		return gen.GenerateCompletion(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	v, err := llm.ParseAnalysisVerdict(reply)
	if err != nil {
		return nil, err
	}
	return &types.AutoAnalysis{
		Score:          v.Score,
		Recommendation: types.Recommendation(v.Recommendation),
		Reasoning:      v.Reasoning,
		Flags:          v.Flags,
		SuggestedEdits: v.SuggestedEdits,
		Model:          gen.GetModel(),
		AnalyzedAt:     s.now(),
	}, nil
}

func (s *Store) resolveCurator(ctx context.Context, log logrus.FieldLogger) CuratorProfile {
	if p, ok := s.profile.get(); ok {
		return p
	}
	if s.curators == nil {
		return CuratorProfile{Name: "default"}
	}
	p, err := s.curators.ResolveCurator(ctx)
	if err != nil {
		log.WithError(err).Warn("curator lookup failed, using default curator")
		return CuratorProfile{Name: "default"}
	}
	s.profile.set(p)
	return p
}

// InvalidateCurator drops the cached curator profile.
func (s *Store) InvalidateCurator() {
	s.profile.invalidate()
}

func timedOut(err error) bool {
	return llm.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}
