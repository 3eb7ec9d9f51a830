package types

import "time"

// PublishedDocument is the canonical knowledge-store record created when an
// item is approved. The curation gate only creates, looks up and (on rollback)
// deletes these records; everything else about them belongs to the knowledge store.
type PublishedDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Namespace   string    `json:"namespace"`
	NamespaceID string    `json:"namespace_id,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float64 `json:"embedding,omitempty"`

	// CurationItemID links back to the queue item that produced the document.
	CurationItemID string `json:"curation_item_id,omitempty"`

	// AbsorbedFrom is the ID of the original document when this one holds
	// only the novel fragment of a near-duplicate submission.
	AbsorbedFrom string `json:"absorbed_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QueryFrequencyRecord tracks how often semantically equivalent text has been seen.
// At most one record exists per semantic cluster per namespace scope; this is
// enforced by the similarity search at write time.
type QueryFrequencyRecord struct {
	ID             string    `json:"id"`
	Hash           string    `json:"hash"` // Fingerprint of NormalizedText
	NormalizedText string    `json:"normalized_text"`
	Embedding      []float64 `json:"embedding,omitempty"`
	HitCount       int       `json:"hit_count"` // Always >= 1, never decremented
	Namespace      string    `json:"namespace,omitempty"` // Empty means global scope
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`

	// DecayedCount is the last value persisted by a sweep. Reads compute the
	// effective count lazily and do not depend on it.
	DecayedCount float64 `json:"decayed_count"`

	// LastCorrelationID is the correlation id of the most recent sighting, for audit.
	LastCorrelationID string `json:"last_correlation_id,omitempty"`
}
