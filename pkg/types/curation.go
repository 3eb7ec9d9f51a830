package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// RejectionRetention is how long a rejected item is kept before it expires.
	RejectionRetention = 30 * 24 * time.Hour

	// DecisionRetentionCeiling is the maximum age of any decided item,
	// measured from StatusChangedAt, regardless of ExpiresAt.
	DecisionRetentionCeiling = 5 * 365 * 24 * time.Hour
)

// CurationItem is a unit of content awaiting a publish decision.
type CurationItem struct {
	// Identity
	ID string `json:"id"` // Opaque unique identifier

	// Content
	Title               string   `json:"title"`
	Body                string   `json:"body"`
	Tags                []string `json:"tags,omitempty"`
	SuggestedNamespaces []string `json:"suggested_namespaces,omitempty"` // First entry is the primary namespace
	SubmittedBy         string   `json:"submitted_by,omitempty"`

	// Dedup fields
	ContentHash    string    `json:"content_hash"`        // Fingerprint of NormalizedBody, never empty once stored
	NormalizedBody string    `json:"normalized_body"`     // Canonical form used for hashing
	Embedding      []float64 `json:"embedding,omitempty"` // Nil until computed

	// Decision fields
	QualityScore   *float64      `json:"quality_score,omitempty"` // 0-100, nil until analysis runs
	AutoAnalysis   *AutoAnalysis `json:"auto_analysis,omitempty"`
	DecisionReason string        `json:"decision_reason,omitempty"` // Free text audit note

	// Lifecycle
	Status              CurationStatus `json:"status"`
	SubmittedAt         time.Time      `json:"submitted_at"`
	ReviewedAt          *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy          string         `json:"reviewed_by,omitempty"`
	StatusChangedAt     time.Time      `json:"status_changed_at"`
	ExpiresAt           *time.Time     `json:"expires_at,omitempty"` // Only set on rejection
	PublishedDocumentID string         `json:"published_document_id,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// AutoAnalysis is the structured verdict produced by the curator analysis step.
type AutoAnalysis struct {
	Score          float64        `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Flags          []string       `json:"flags,omitempty"`
	SuggestedEdits []string       `json:"suggested_edits,omitempty"`

	// Provenance of the verdict: "curator", "fallback" or "synthetic".
	Source     string    `json:"source,omitempty"`
	Model      string    `json:"model,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Analysis sources
const (
	AnalysisSourceCurator   = "curator"
	AnalysisSourceFallback  = "fallback"
	AnalysisSourceSynthetic = "synthetic"
)

// PrimaryNamespace returns the first suggested namespace, or "" when none is set.
func (c *CurationItem) PrimaryNamespace() string {
	if len(c.SuggestedNamespaces) == 0 {
		return ""
	}
	return c.SuggestedNamespaces[0]
}

// Validate checks the invariants of a curation item.
func (c *CurationItem) Validate() error {
	if c == nil {
		return errors.New("curation item is nil")
	}
	if c.ID == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(c.Body) == "" {
		return errors.New("body is required")
	}
	if c.ContentHash == "" {
		return errors.New("content_hash is required")
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid status %q", c.Status)
	}
	if c.QualityScore != nil && (*c.QualityScore < 0 || *c.QualityScore > 100) {
		return fmt.Errorf("quality_score must be between 0 and 100 (got %.2f)", *c.QualityScore)
	}

	switch c.Status {
	case StatusApproved:
		if c.PublishedDocumentID == "" {
			return errors.New("approved item requires published_document_id")
		}
	case StatusRejected:
		if c.ExpiresAt == nil {
			return errors.New("rejected item requires expires_at")
		}
	}
	return nil
}

// Clone returns a deep copy of the item so callers can mutate it freely.
func (c *CurationItem) Clone() *CurationItem {
	if c == nil {
		return nil
	}
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	out.SuggestedNamespaces = append([]string(nil), c.SuggestedNamespaces...)
	if c.Embedding != nil {
		out.Embedding = append([]float64(nil), c.Embedding...)
	}
	if c.QualityScore != nil {
		v := *c.QualityScore
		out.QualityScore = &v
	}
	if c.AutoAnalysis != nil {
		a := *c.AutoAnalysis
		a.Flags = append([]string(nil), c.AutoAnalysis.Flags...)
		a.SuggestedEdits = append([]string(nil), c.AutoAnalysis.SuggestedEdits...)
		out.AutoAnalysis = &a
	}
	out.ReviewedAt = cloneTime(c.ReviewedAt)
	out.ExpiresAt = cloneTime(c.ExpiresAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
