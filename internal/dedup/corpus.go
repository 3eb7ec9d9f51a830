package dedup

import (
	"context"
	"errors"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/cache"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// Corpus is the read side of the stores the detector searches.
type Corpus interface {
	// ExactPublished returns the published document with this fingerprint, or nil.
	ExactPublished(ctx context.Context, fingerprint string) (*storage.SimilarityMatch, error)

	// ExactPending returns a pending item with this fingerprint other than excludeID, or nil.
	ExactPending(ctx context.Context, fingerprint, excludeID string) (*storage.SimilarityMatch, error)

	// NearestPublished and NearestPending rank by cosine similarity.
	NearestPublished(ctx context.Context, embedding []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error)
	NearestPending(ctx context.Context, embedding []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error)
}

// StoreCorpus adapts the storage collections, with an optional redis
// fingerprint cache in front of published-document lookups.
type StoreCorpus struct {
	Documents storage.DocumentStore
	Curation  storage.CurationStore
	Cache     *cache.FingerprintCache
}

func (c *StoreCorpus) ExactPublished(ctx context.Context, fingerprint string) (*storage.SimilarityMatch, error) {
	if entry, ok := c.Cache.Get(ctx, fingerprint); ok {
		return &storage.SimilarityMatch{
			ID:         entry.DocumentID,
			Title:      entry.Title,
			Body:       entry.Body,
			Namespace:  entry.Namespace,
			Similarity: 1.0,
		}, nil
	}

	doc, err := c.Documents.FindByHash(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Populate the cache on the way out; a failed write only costs a future miss.
	_ = c.Cache.Put(ctx, fingerprint, cache.Entry{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Body:       doc.Body,
		Namespace:  doc.Namespace,
	})

	return &storage.SimilarityMatch{
		ID:         doc.ID,
		Title:      doc.Title,
		Body:       doc.Body,
		Namespace:  doc.Namespace,
		Similarity: 1.0,
	}, nil
}

func (c *StoreCorpus) ExactPending(ctx context.Context, fingerprint, excludeID string) (*storage.SimilarityMatch, error) {
	item, err := c.Curation.FindPendingByHash(ctx, fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if item.ID == excludeID {
		return nil, nil
	}
	return &storage.SimilarityMatch{
		ID:         item.ID,
		Title:      item.Title,
		Body:       item.Body,
		Namespace:  item.PrimaryNamespace(),
		Similarity: 1.0,
		Pending:    true,
	}, nil
}

func (c *StoreCorpus) NearestPublished(ctx context.Context, embedding []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	return c.Documents.SearchSimilar(ctx, embedding, opts)
}

func (c *StoreCorpus) NearestPending(ctx context.Context, embedding []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	return c.Curation.SearchSimilarPending(ctx, embedding, opts)
}

var _ Corpus = (*StoreCorpus)(nil)
