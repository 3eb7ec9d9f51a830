// Package storage provides the persistence interfaces of the curation gate.
//
// The storage layer is split into small interfaces, one per collection, so
// backends can be implemented and composed independently. The sqlite, postgres
// and memstore subpackages provide the implementations.
package storage

import (
	"context"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// CurationStore persists curation queue items.
type CurationStore interface {
	// Insert creates a new item. Returns ErrConflict if the ID already exists.
	Insert(ctx context.Context, item *types.CurationItem) error

	// Get retrieves an item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	Get(ctx context.Context, id string) (*types.CurationItem, error)

	// Update replaces the stored item only if its current status equals
	// expected. Returns ErrNotFound if the item doesn't exist and ErrConflict
	// if another writer changed its status first.
	Update(ctx context.Context, item *types.CurationItem, expected types.CurationStatus) error

	// Delete removes an item permanently.
	// Returns ErrNotFound if the item doesn't exist.
	Delete(ctx context.Context, id string) error

	// List retrieves items with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.CurationItem], error)

	// FindPendingByHash returns the pending item with the given content hash.
	// Returns ErrNotFound when there is none.
	FindPendingByHash(ctx context.Context, hash string) (*types.CurationItem, error)

	// SearchSimilarPending ranks pending items with embeddings by cosine
	// similarity to query. An empty namespace searches every namespace.
	SearchSimilarPending(ctx context.Context, query []float64, opts SimilarityOptions) ([]SimilarityMatch, error)

	// DeleteExpiredRejected removes rejected items whose expires_at is before now.
	DeleteExpiredRejected(ctx context.Context, now time.Time) (int, error)

	// DeleteDecidedBefore removes approved and rejected items whose
	// status_changed_at is before cutoff. Pending items are never touched.
	DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// DocumentStore persists published documents.
type DocumentStore interface {
	// Create stores a new document. Returns ErrConflict if the ID already exists.
	Create(ctx context.Context, doc *types.PublishedDocument) error

	// Get retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, id string) (*types.PublishedDocument, error)

	// Delete removes a document. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// FindByHash returns a document with the given content hash.
	// Returns ErrNotFound when there is none.
	FindByHash(ctx context.Context, hash string) (*types.PublishedDocument, error)

	// SearchSimilar ranks documents by cosine similarity to query.
	// An empty namespace searches the full corpus.
	SearchSimilar(ctx context.Context, query []float64, opts SimilarityOptions) ([]SimilarityMatch, error)
}

// FrequencyStore persists query frequency records.
type FrequencyStore interface {
	// FindNearest returns the record in namespace most similar to query
	// together with its similarity. Namespace scopes are matched exactly;
	// "" is the global scope. Returns ErrNotFound when the scope is empty.
	FindNearest(ctx context.Context, query []float64, namespace string) (*types.QueryFrequencyRecord, float64, error)

	// Insert creates a new record.
	Insert(ctx context.Context, rec *types.QueryFrequencyRecord) error

	// RecordHit atomically increments hit_count and sets last_seen_at.
	// Returns ErrNotFound if the record doesn't exist.
	RecordHit(ctx context.Context, id string, seenAt time.Time, correlationID string) error

	// ListAll returns every record, for sweeps.
	ListAll(ctx context.Context) ([]*types.QueryFrequencyRecord, error)

	// SetDecayedCount persists a precomputed decayed count.
	SetDecayedCount(ctx context.Context, id string, decayed float64) error

	// DeleteStale removes records last seen before cutoff with hit_count below minHits.
	DeleteStale(ctx context.Context, cutoff time.Time, minHits int) (int, error)
}

// Backend bundles the three collections of one persistence engine.
type Backend interface {
	Curation() CurationStore
	Documents() DocumentStore
	Frequency() FrequencyStore
	Close() error
}
