// Package types defines the core data structures of the curation gate.
// These types represent queue items awaiting a publish decision, the published
// documents they turn into, and the query frequency records used by the reuse
// heuristic.
package types

// CurationStatus represents the lifecycle status of a curation item.
type CurationStatus string

// Recommendation is the verdict an analyzer (LLM or decision engine) gives for an item.
type Recommendation string

// Curation status constants
const (
	// StatusPending indicates the item awaits an automated or human decision
	StatusPending CurationStatus = "pending"

	// StatusApproved indicates the item was published to the knowledge store
	StatusApproved CurationStatus = "approved"

	// StatusRejected indicates the item was refused and will expire
	StatusRejected CurationStatus = "rejected"
)

// Recommendation constants
const (
	RecommendApprove Recommendation = "approve"
	RecommendReject  Recommendation = "reject"
	RecommendReview  Recommendation = "review"
)

// ValidStatuses contains all valid curation status values.
var ValidStatuses = []CurationStatus{
	StatusPending,
	StatusApproved,
	StatusRejected,
}

// IsValid reports whether s is a known status.
func (s CurationStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s CurationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsValid reports whether r is a known recommendation.
func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendApprove, RecommendReject, RecommendReview:
		return true
	}
	return false
}

// Tag constants attached to published documents.
const (
	// TagAbsorbed marks a document that holds only the novel fragment of a near-duplicate.
	TagAbsorbed = "absorbed"
)

// Source constants recorded on published documents.
const (
	SourceCuration   = "curation"
	SourceAbsorption = "curation-absorption"
)
