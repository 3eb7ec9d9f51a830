// Package curation is the queue every piece of content passes through before
// it is published. It drives duplicate detection, scoring, the auto-approval
// decision and the pending → approved | rejected lifecycle.
package curation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/absorption"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/cache"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/dedup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/metrics"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

const (
	// DefaultAnalysisTimeout bounds one auto analysis, slot wait included.
	DefaultAnalysisTimeout = 30 * time.Second

	// DefaultMaxConcurrentAnalyses bounds analyses running across items.
	DefaultMaxConcurrentAnalyses = 4

	// DefaultCuratorCacheTTL is how long a resolved curator profile is reused.
	DefaultCuratorCacheTTL = 5 * time.Minute

	// AutoReviewer is recorded as reviewer on automatic decisions.
	AutoReviewer = "auto-curator"

	maxQueryTextRunes = 200
)

// DuplicateChecker is the duplicate detector.
type DuplicateChecker interface {
	Check(ctx context.Context, req dedup.CheckRequest) (*dedup.Verdict, error)
}

// Absorber extracts the novel part of a near-duplicate.
type Absorber interface {
	Analyze(originalBody, newBody string) absorption.Result
}

// FrequencyTracker records recurring query text. Track never fails.
type FrequencyTracker interface {
	Track(ctx context.Context, text, namespace, correlationID string)
}

// Decider is the auto-approval decision engine.
type Decider interface {
	Decide(ctx context.Context, in decision.Input) decision.Decision
}

// Deps are the collaborators of a Store. Items, Documents and Detector are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Items     storage.CurationStore
	Documents storage.DocumentStore
	Detector  DuplicateChecker
	Absorber  Absorber
	Frequency FrequencyTracker
	Engine    Decider

	// Embedder embeds absorbed fragments before they are published.
	Embedder llm.Embedder

	// Curator is the default curator model, Fallback the general-purpose one.
	Curator  llm.TextGenerator
	Fallback llm.TextGenerator
	Curators CuratorResolver

	Indexer    KnowledgeIndexer
	Namespaces NamespaceRegistry
	Cache      *cache.FingerprintCache

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

// Config tunes a Store.
type Config struct {
	AnalysisTimeout       time.Duration
	MaxConcurrentAnalyses int64
	CuratorCacheTTL       time.Duration

	// Now overrides time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if c.MaxConcurrentAnalyses < 1 {
		c.MaxConcurrentAnalyses = DefaultMaxConcurrentAnalyses
	}
	if c.CuratorCacheTTL == 0 {
		c.CuratorCacheTTL = DefaultCuratorCacheTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Store is the curation queue.
type Store struct {
	items     storage.CurationStore
	documents storage.DocumentStore
	detector  DuplicateChecker
	absorber  Absorber
	frequency FrequencyTracker
	engine    Decider
	embedder  llm.Embedder

	curator  llm.TextGenerator
	fallback llm.TextGenerator
	curators CuratorResolver
	profile  *ttlCache[CuratorProfile]

	indexer    KnowledgeIndexer
	namespaces NamespaceRegistry
	cache      *cache.FingerprintCache

	cfg     Config
	logger  logrus.FieldLogger
	metrics *metrics.Metrics

	analyses *semaphore.Weighted
	inflight singleflight.Group
}

// NewStore wires a Store.
func NewStore(deps Deps, cfg Config) (*Store, error) {
	if deps.Items == nil || deps.Documents == nil {
		return nil, errors.New("curation: item and document stores are required")
	}
	if deps.Detector == nil {
		return nil, errors.New("curation: duplicate detector is required")
	}
	if deps.Absorber == nil {
		deps.Absorber = absorption.New()
	}
	if deps.Engine == nil {
		deps.Engine = decision.NewEngine(nil, nil, nil, deps.Logger, deps.Metrics)
	}
	cfg = cfg.withDefaults()

	return &Store{
		items:      deps.Items,
		documents:  deps.Documents,
		detector:   deps.Detector,
		absorber:   deps.Absorber,
		frequency:  deps.Frequency,
		engine:     deps.Engine,
		embedder:   deps.Embedder,
		curator:    deps.Curator,
		fallback:   deps.Fallback,
		curators:   deps.Curators,
		profile:    newTTLCache[CuratorProfile](cfg.CuratorCacheTTL, cfg.Now),
		indexer:    deps.Indexer,
		namespaces: deps.Namespaces,
		cache:      deps.Cache,
		cfg:        cfg,
		logger:     logging.OrDiscard(deps.Logger),
		metrics:    deps.Metrics,
		analyses:   semaphore.NewWeighted(cfg.MaxConcurrentAnalyses),
	}, nil
}

// SubmitRequest is new content entering the queue.
type SubmitRequest struct {
	Title       string
	Body        string
	Namespaces  []string // first entry is the primary namespace
	Tags        []string
	SubmittedBy string
}

// Submit queues content as pending. Duplicates fail with
// *DuplicateContentError and insert nothing. A near-duplicate of a
// published document is accepted when it carries enough new content; its
// approval publishes only that part. Auto analysis runs before Submit
// returns but its failures never fail the submission.
func (s *Store) Submit(ctx context.Context, req SubmitRequest) (*types.CurationItem, error) {
	body := strings.TrimSpace(req.Body)
	normalized, fingerprint := normalize.Content(body)
	if fingerprint == "" {
		s.metrics.Submission("invalid")
		return nil, fmt.Errorf("%w: body is required", storage.ErrInvalidInput)
	}

	namespaces := cleanList(req.Namespaces)
	primary := ""
	if len(namespaces) > 0 {
		primary = namespaces[0]
	}
	log := s.logger.WithFields(logrus.Fields{"operation": "submit", "namespace": primary})

	verdict, err := s.detector.Check(ctx, dedup.CheckRequest{
		Body:           body,
		Fingerprint:    fingerprint,
		NormalizedBody: normalized,
		Namespace:      primary,
	})
	if err != nil {
		s.metrics.Submission("error")
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	absorbed, err := s.screenDuplicate(verdict, body)
	if err != nil {
		s.metrics.Submission("duplicate")
		log.WithError(err).Info("submission refused as duplicate")
		return nil, err
	}

	now := s.now()
	item := &types.CurationItem{
		ID:                  uuid.NewString(),
		Title:               strings.TrimSpace(req.Title),
		Body:                body,
		Tags:                cleanList(req.Tags),
		SuggestedNamespaces: namespaces,
		SubmittedBy:         strings.TrimSpace(req.SubmittedBy),
		ContentHash:         fingerprint,
		NormalizedBody:      normalized,
		Embedding:           verdict.Embedding,
		Status:              types.StatusPending,
		SubmittedAt:         now,
		StatusChangedAt:     now,
		UpdatedAt:           now,
	}
	if err := item.Validate(); err != nil {
		s.metrics.Submission("invalid")
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if err := s.items.Insert(ctx, item); err != nil {
		s.metrics.Submission("error")
		return nil, fmt.Errorf("failed to queue item: %w", err)
	}
	s.metrics.Submission("accepted")

	log = log.WithField("item_id", item.ID)
	if absorbed != nil {
		log = log.WithFields(logrus.Fields{
			"absorbs":             verdict.MatchedID,
			"new_content_percent": absorbed.Stats.NewContentPercent,
		})
	}
	log.WithField("degraded", verdict.Degraded).Info("item queued")

	// Frequency must include this submission before the decision runs.
	if s.frequency != nil {
		s.frequency.Track(ctx, queryText(item), primary, item.ID)
	}

	outcome, err := s.RunAutoAnalysis(ctx, item.ID)
	if err != nil {
		log.WithError(err).Warn("auto analysis failed, item left pending")
		return item, nil
	}
	return outcome.Item, nil
}

// screenDuplicate turns a positive verdict into a *DuplicateContentError,
// unless the match is a published document and the new body carries
// enough new content to be absorbed.
func (s *Store) screenDuplicate(v *dedup.Verdict, body string) (*absorption.Result, error) {
	if !v.IsDuplicate {
		return nil, nil
	}
	dup := &DuplicateContentError{
		MatchedID:    v.MatchedID,
		MatchedTitle: v.MatchedTitle,
		Similarity:   v.Similarity,
		IsPending:    v.IsPending,
	}
	if v.IsPending {
		dup.Reason = "same content is already awaiting review"
		return nil, dup
	}

	res := s.absorber.Analyze(v.MatchedBody, body)
	pct := res.Stats.NewContentPercent
	dup.NewContentPercent = &pct
	if !res.ShouldAbsorb {
		dup.Reason = "not enough new content to absorb"
		return nil, dup
	}
	return &res, nil
}

// Updates are the editable fields of a pending item. Nil fields are unchanged.
type Updates struct {
	Title      *string
	Body       *string
	Tags       *[]string
	Namespaces *[]string
}

// EditPending changes a pending item. A new body gets a new fingerprint and
// drops the embedding and analysis computed for the old one.
func (s *Store) EditPending(ctx context.Context, id string, u Updates) (*types.CurationItem, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != types.StatusPending {
		return nil, &InvalidStateTransitionError{ID: id, Operation: "edit", Status: item.Status}
	}

	changed := false
	if u.Title != nil {
		item.Title = strings.TrimSpace(*u.Title)
		changed = true
	}
	if u.Body != nil {
		body := strings.TrimSpace(*u.Body)
		normalized, fingerprint := normalize.Content(body)
		if fingerprint == "" {
			return nil, fmt.Errorf("%w: body is required", storage.ErrInvalidInput)
		}
		if fingerprint != item.ContentHash {
			item.Embedding = nil
		}
		item.Body = body
		item.NormalizedBody = normalized
		item.ContentHash = fingerprint
		changed = true
	}
	if u.Tags != nil {
		item.Tags = cleanList(*u.Tags)
	}
	if u.Namespaces != nil {
		item.SuggestedNamespaces = cleanList(*u.Namespaces)
	}
	if changed {
		item.QualityScore = nil
		item.AutoAnalysis = nil
		item.DecisionReason = ""
	}
	item.UpdatedAt = s.now()

	if err := s.items.Update(ctx, item, types.StatusPending); err != nil {
		return nil, s.transitionError(ctx, err, id, "edit")
	}
	return item, nil
}

// GetByID returns one item.
func (s *Store) GetByID(ctx context.Context, id string) (*types.CurationItem, error) {
	return s.load(ctx, id)
}

// ListPending returns pending items, oldest first unless opts says otherwise.
func (s *Store) ListPending(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	opts.Statuses = []types.CurationStatus{types.StatusPending}
	if opts.SortOrder == "" {
		opts.SortOrder = "asc"
	}
	return s.list(ctx, opts)
}

// ListAll returns items matching opts in any status.
func (s *Store) ListAll(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	return s.list(ctx, opts)
}

// ListHistory returns decided items, most recently decided first. Statuses
// in opts may narrow the result to approved or rejected only.
func (s *Store) ListHistory(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	decided := make([]types.CurationStatus, 0, 2)
	for _, st := range opts.Statuses {
		if st.IsTerminal() {
			decided = append(decided, st)
		}
	}
	if len(decided) == 0 {
		decided = []types.CurationStatus{types.StatusApproved, types.StatusRejected}
	}
	opts.Statuses = decided
	if opts.SortBy == "" {
		opts.SortBy = "status_changed_at"
	}
	return s.list(ctx, opts)
}

func (s *Store) list(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	opts.Normalize()
	res, err := s.items.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return res, nil
}

func (s *Store) load(ctx context.Context, id string) (*types.CurationItem, error) {
	item, err := s.items.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", id, err)
	}
	return item, nil
}

// transitionError maps a failed compare-and-set write to the error the
// caller should see.
func (s *Store) transitionError(ctx context.Context, err error, id, operation string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &NotFoundError{ID: id}
	case errors.Is(err, storage.ErrConflict):
		status := types.CurationStatus("unknown")
		if cur, gerr := s.items.Get(ctx, id); gerr == nil {
			status = cur.Status
		}
		return &InvalidStateTransitionError{ID: id, Operation: operation, Status: status}
	default:
		return fmt.Errorf("failed to %s item %s: %w", operation, id, err)
	}
}

func (s *Store) now() time.Time {
	return s.cfg.Now().UTC()
}

// queryText is the text tracked for frequency and matched by the decision
// engine: the title, or the first line of the body.
func queryText(item *types.CurationItem) string {
	text := item.Title
	if text == "" {
		text, _, _ = strings.Cut(item.Body, "\n")
	}
	return truncateRunes(strings.TrimSpace(text), maxQueryTextRunes)
}

func cleanList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if _, dup := seen[v]; v == "" || dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
