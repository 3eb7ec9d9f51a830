package storage

import (
	"errors"
	"sort"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a concurrent write or a duplicate key.
	ErrConflict = errors.New("conflict")
)

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering options for curation item lists.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 50, max: 500).
	Limit int

	// SortBy is one of submitted_at, status_changed_at, reviewed_at,
	// quality_score (default: submitted_at).
	SortBy string

	// SortOrder is "asc" or "desc" (default: desc).
	SortOrder string

	// Statuses restricts results to these statuses. Empty means all.
	Statuses []types.CurationStatus

	// Namespace matches items whose suggested namespaces include this value.
	Namespace string

	// SubmittedBy and ReviewedBy filter by actor. Empty means no filter.
	SubmittedBy string
	ReviewedBy  string

	// ChangedAfter and ChangedBefore bound status_changed_at (exclusive).
	// Zero values mean no bound.
	ChangedAfter  time.Time
	ChangedBefore time.Time
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection
	allowedSortFields := map[string]bool{
		"submitted_at":      true,
		"status_changed_at": true,
		"reviewed_at":       true,
		"quality_score":     true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "submitted_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 50
	}

	if o.Limit > 500 {
		o.Limit = 500
	}
}

// Offset returns the row offset for the current page.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Matches reports whether item passes the non-pagination filters. Backends
// that filter in Go (memstore, sqlite namespace matching) share it.
func (o *ListOptions) Matches(item *types.CurationItem) bool {
	if len(o.Statuses) > 0 {
		ok := false
		for _, s := range o.Statuses {
			if item.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if o.Namespace != "" && !containsString(item.SuggestedNamespaces, o.Namespace) {
		return false
	}
	if o.SubmittedBy != "" && item.SubmittedBy != o.SubmittedBy {
		return false
	}
	if o.ReviewedBy != "" && item.ReviewedBy != o.ReviewedBy {
		return false
	}
	if !o.ChangedAfter.IsZero() && !item.StatusChangedAt.After(o.ChangedAfter) {
		return false
	}
	if !o.ChangedBefore.IsZero() && !item.StatusChangedAt.Before(o.ChangedBefore) {
		return false
	}
	return true
}

// Paginate sorts items per the options and returns the requested page.
// opts must already be normalized.
func Paginate(items []types.CurationItem, opts ListOptions) *PaginatedResult[types.CurationItem] {
	key := func(it *types.CurationItem) float64 {
		switch opts.SortBy {
		case "status_changed_at":
			return float64(it.StatusChangedAt.UnixNano())
		case "reviewed_at":
			if it.ReviewedAt == nil {
				return 0
			}
			return float64(it.ReviewedAt.UnixNano())
		case "quality_score":
			if it.QualityScore == nil {
				return -1
			}
			return *it.QualityScore
		default:
			return float64(it.SubmittedAt.UnixNano())
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if opts.SortOrder == "asc" {
			return key(&items[i]) < key(&items[j])
		}
		return key(&items[i]) > key(&items[j])
	})

	total := len(items)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &PaginatedResult[types.CurationItem]{
		Items:    items[start:end],
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  end < total,
	}
}

// SimilarityOptions scopes a vector search.
type SimilarityOptions struct {
	// Namespace restricts candidates; empty means no restriction.
	Namespace string

	// MinSimilarity drops results below this cosine similarity.
	MinSimilarity float64

	// Limit caps the number of results (default: 5).
	Limit int

	// ExcludeID skips one record, typically the item being re-verified.
	ExcludeID string
}

// Normalize applies defaults.
func (o *SimilarityOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 5
	}
}

// SimilarityMatch is one vector search hit.
type SimilarityMatch struct {
	ID         string
	Title      string
	Body       string
	Namespace  string
	Similarity float64
	Pending    bool // true for queue items, false for published documents
}

// SortMatches orders matches by descending similarity and truncates to limit.
func SortMatches(matches []SimilarityMatch, limit int) []SimilarityMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IndexMetadata accompanies a document handed to a knowledge index.
type IndexMetadata struct {
	Namespace string
	Title     string
	Tags      []string
	Source    string
}

// KnowledgeHit is one full-text search result.
type KnowledgeHit struct {
	DocumentID string
	Namespace  string
	Title      string
	Snippet    string
	Rank       float64
}
