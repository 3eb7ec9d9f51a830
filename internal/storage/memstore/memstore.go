// Package memstore is an in-process storage backend. It keeps every record in
// maps guarded by a mutex and is used by tests and by single-process tools
// that do not need durability.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// Backend bundles the in-memory collections.
type Backend struct {
	curation  *CurationStore
	documents *DocumentStore
	frequency *FrequencyStore
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		curation:  &CurationStore{items: make(map[string]*types.CurationItem)},
		documents: &DocumentStore{docs: make(map[string]*types.PublishedDocument)},
		frequency: &FrequencyStore{records: make(map[string]*types.QueryFrequencyRecord)},
	}
}

func (b *Backend) Curation() storage.CurationStore { return b.curation }

func (b *Backend) Documents() storage.DocumentStore { return b.documents }

func (b *Backend) Frequency() storage.FrequencyStore { return b.frequency }

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// CurationStore implements storage.CurationStore in memory.
type CurationStore struct {
	mu    sync.RWMutex
	items map[string]*types.CurationItem
}

func (s *CurationStore) Insert(ctx context.Context, item *types.CurationItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}
	if item.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: item %s already exists", storage.ErrConflict, item.ID)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *CurationStore) Get(ctx context.Context, id string) (*types.CurationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *CurationStore) Update(ctx context.Context, item *types.CurationItem, expected types.CurationStatus) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[item.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return fmt.Errorf("%w: item %s is %s, expected %s", storage.ErrConflict, item.ID, cur.Status, expected)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *CurationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *CurationStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	opts.Normalize()

	s.mu.RLock()
	matched := make([]types.CurationItem, 0, len(s.items))
	for _, item := range s.items {
		if opts.Matches(item) {
			matched = append(matched, *item.Clone())
		}
	}
	s.mu.RUnlock()

	return storage.Paginate(matched, opts), nil
}

func (s *CurationStore) FindPendingByHash(ctx context.Context, hash string) (*types.CurationItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Status == types.StatusPending && item.ContentHash == hash {
			return item.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *CurationStore) SearchSimilarPending(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []storage.SimilarityMatch
	for _, item := range s.items {
		if item.Status != types.StatusPending || len(item.Embedding) == 0 || item.ID == opts.ExcludeID {
			continue
		}
		if opts.Namespace != "" && item.PrimaryNamespace() != opts.Namespace {
			continue
		}
		sim := vector.Cosine(query, item.Embedding)
		if sim < opts.MinSimilarity {
			continue
		}
		matches = append(matches, storage.SimilarityMatch{
			ID:         item.ID,
			Title:      item.Title,
			Body:       item.Body,
			Namespace:  item.PrimaryNamespace(),
			Similarity: sim,
			Pending:    true,
		})
	}
	return storage.SortMatches(matches, opts.Limit), nil
}

func (s *CurationStore) DeleteExpiredRejected(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, item := range s.items {
		if item.Status == types.StatusRejected && item.ExpiresAt != nil && item.ExpiresAt.Before(now) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *CurationStore) DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, item := range s.items {
		if item.Status.IsTerminal() && item.StatusChangedAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

// DocumentStore implements storage.DocumentStore in memory.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*types.PublishedDocument
}

func (s *DocumentStore) Create(ctx context.Context, doc *types.PublishedDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("%w: document %s already exists", storage.ErrConflict, doc.ID)
	}
	cp := *doc
	cp.Tags = append([]string(nil), doc.Tags...)
	cp.Embedding = append([]float64(nil), doc.Embedding...)
	s.docs[doc.ID] = &cp
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*types.PublishedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *DocumentStore) FindByHash(ctx context.Context, hash string) (*types.PublishedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.ContentHash == hash {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *DocumentStore) SearchSimilar(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []storage.SimilarityMatch
	for _, doc := range s.docs {
		if len(doc.Embedding) == 0 || doc.ID == opts.ExcludeID {
			continue
		}
		if opts.Namespace != "" && doc.Namespace != opts.Namespace {
			continue
		}
		sim := vector.Cosine(query, doc.Embedding)
		if sim < opts.MinSimilarity {
			continue
		}
		matches = append(matches, storage.SimilarityMatch{
			ID:         doc.ID,
			Title:      doc.Title,
			Body:       doc.Body,
			Namespace:  doc.Namespace,
			Similarity: sim,
		})
	}
	return storage.SortMatches(matches, opts.Limit), nil
}

// FrequencyStore implements storage.FrequencyStore in memory.
type FrequencyStore struct {
	mu      sync.RWMutex
	records map[string]*types.QueryFrequencyRecord
}

func (s *FrequencyStore) FindNearest(ctx context.Context, query []float64, namespace string) (*types.QueryFrequencyRecord, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *types.QueryFrequencyRecord
	bestSim := -2.0
	for _, rec := range s.records {
		if rec.Namespace != namespace {
			continue
		}
		sim := vector.Cosine(query, rec.Embedding)
		if sim > bestSim {
			best, bestSim = rec, sim
		}
	}
	if best == nil {
		return nil, 0, storage.ErrNotFound
	}
	cp := *best
	return &cp, bestSim, nil
}

func (s *FrequencyStore) Insert(ctx context.Context, rec *types.QueryFrequencyRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("%w: record %s already exists", storage.ErrConflict, rec.ID)
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *FrequencyStore) RecordHit(ctx context.Context, id string, seenAt time.Time, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.HitCount++
	rec.LastSeenAt = seenAt
	if correlationID != "" {
		rec.LastCorrelationID = correlationID
	}
	return nil
}

func (s *FrequencyStore) ListAll(ctx context.Context) ([]*types.QueryFrequencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.QueryFrequencyRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *FrequencyStore) SetDecayedCount(ctx context.Context, id string, decayed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.DecayedCount = decayed
	return nil
}

func (s *FrequencyStore) DeleteStale(ctx context.Context, cutoff time.Time, minHits int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if rec.LastSeenAt.Before(cutoff) && rec.HitCount < minHits {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

var (
	_ storage.Backend        = (*Backend)(nil)
	_ storage.CurationStore  = (*CurationStore)(nil)
	_ storage.DocumentStore  = (*DocumentStore)(nil)
	_ storage.FrequencyStore = (*FrequencyStore)(nil)
)
