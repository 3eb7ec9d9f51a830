package curation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/cache"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/dedup"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/normalize"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// ApprovalResult is the outcome of a successful approval or publish.
type ApprovalResult struct {
	Item                *types.CurationItem
	PublishedDocumentID string

	// AbsorbedFrom is the document the published fragment extends, when
	// only the new part of a near-duplicate was published.
	AbsorbedFrom      string
	NewContentPercent float64
}

// Approve publishes a pending item and marks it approved. Duplicates are
// re-verified against every published document first. An indexing
// failure deletes the new document and returns *ApprovalRolledBackError;
// the item stays pending.
func (s *Store) Approve(ctx context.Context, id, reviewer, note string) (*ApprovalResult, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !types.IsValidStatusTransition(item.Status, types.StatusApproved) {
		return nil, &InvalidStateTransitionError{ID: id, Operation: "approve", Status: item.Status}
	}
	return s.approve(ctx, item, reviewer, note)
}

func (s *Store) approve(ctx context.Context, item *types.CurationItem, reviewer, note string) (*ApprovalResult, error) {
	doc, res, err := s.publish(ctx, item)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item.Status = types.StatusApproved
	item.ReviewedAt = &now
	item.ReviewedBy = reviewer
	item.StatusChangedAt = now
	item.UpdatedAt = now
	item.PublishedDocumentID = doc.ID
	if note != "" {
		item.DecisionReason = note
	}

	if err := s.items.Update(ctx, item, types.StatusPending); err != nil {
		rbErr := s.rollback(ctx, doc)
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			return nil, s.transitionError(ctx, err, item.ID, "approve")
		}
		return nil, &ApprovalRolledBackError{ItemID: item.ID, DocumentID: doc.ID, Err: err, RollbackErr: rbErr}
	}

	s.cachePublished(ctx, doc)
	s.logger.WithFields(logrus.Fields{
		"operation":   "approve",
		"item_id":     item.ID,
		"document_id": doc.ID,
		"reviewer":    reviewer,
		"absorbed":    res.AbsorbedFrom != "",
	}).Info("item approved")

	res.Item = item
	return res, nil
}

// PublishApproved publishes an item that was approved without a published
// document, such as one approved out-of-band. The same duplicate checks
// and rollback as Approve apply; the status is already approved.
func (s *Store) PublishApproved(ctx context.Context, id, reviewer string) (*ApprovalResult, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != types.StatusApproved || item.PublishedDocumentID != "" {
		return nil, &InvalidStateTransitionError{ID: id, Operation: "publish", Status: item.Status}
	}

	doc, res, err := s.publish(ctx, item)
	if err != nil {
		return nil, err
	}

	item.PublishedDocumentID = doc.ID
	item.UpdatedAt = s.now()
	if item.ReviewedBy == "" {
		item.ReviewedBy = reviewer
	}
	if err := s.items.Update(ctx, item, types.StatusApproved); err != nil {
		rbErr := s.rollback(ctx, doc)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, &ApprovalRolledBackError{ItemID: item.ID, DocumentID: doc.ID, Err: err, RollbackErr: rbErr}
	}

	s.cachePublished(ctx, doc)
	res.Item = item
	return res, nil
}

// Reject marks a pending item rejected. It expires RejectionRetention after
// the review.
func (s *Store) Reject(ctx context.Context, id, reviewer, note string) (*types.CurationItem, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reject(ctx, item, reviewer, note)
}

func (s *Store) reject(ctx context.Context, item *types.CurationItem, reviewer, note string) (*types.CurationItem, error) {
	if !types.IsValidStatusTransition(item.Status, types.StatusRejected) {
		return nil, &InvalidStateTransitionError{ID: item.ID, Operation: "reject", Status: item.Status}
	}

	now := s.now()
	expires := now.Add(types.RejectionRetention)
	item.Status = types.StatusRejected
	item.ReviewedAt = &now
	item.ReviewedBy = reviewer
	item.StatusChangedAt = now
	item.ExpiresAt = &expires
	item.UpdatedAt = now
	if note != "" {
		item.DecisionReason = note
	}

	if err := s.items.Update(ctx, item, types.StatusPending); err != nil {
		return nil, s.transitionError(ctx, err, item.ID, "reject")
	}
	s.logger.WithFields(logrus.Fields{
		"operation": "reject",
		"item_id":   item.ID,
		"reviewer":  reviewer,
	}).Info("item rejected")
	return item, nil
}

// publish verifies, absorbs, provisions namespaces, creates the document
// and indexes it. Everything it created is removed again when it fails.
func (s *Store) publish(ctx context.Context, item *types.CurationItem) (*types.PublishedDocument, *ApprovalResult, error) {
	primary := item.PrimaryNamespace()
	log := s.logger.WithFields(logrus.Fields{"operation": "publish", "item_id": item.ID, "namespace": primary})

	verdict, err := s.detector.Check(ctx, dedup.CheckRequest{
		Body:            item.Body,
		Fingerprint:     item.ContentHash,
		NormalizedBody:  item.NormalizedBody,
		PolicyNamespace: primary,
		ExcludeID:       item.ID,
		Embedding:       item.Embedding,
		PublishedOnly:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("duplicate re-verification failed: %w", err)
	}
	if len(item.Embedding) == 0 && len(verdict.Embedding) > 0 {
		item.Embedding = verdict.Embedding
	}

	res := &ApprovalResult{NewContentPercent: 100}
	body, tags, source := item.Body, item.Tags, types.SourceCuration
	embedding := item.Embedding

	if match := nearDuplicate(verdict); match != nil {
		abs := s.absorber.Analyze(match.Body, item.Body)
		res.NewContentPercent = abs.Stats.NewContentPercent
		switch {
		case abs.ShouldAbsorb && abs.Stats.ExtractedLen < abs.Stats.NewLen:
			body = abs.ExtractedBody
			tags = append(append([]string(nil), item.Tags...), types.TagAbsorbed)
			source = types.SourceAbsorption
			res.AbsorbedFrom = match.ID
			embedding = s.embedFragment(ctx, body, log)
		case verdict.IsDuplicate && !abs.ShouldAbsorb:
			pct := abs.Stats.NewContentPercent
			return nil, nil, &DuplicateContentError{
				MatchedID:         match.ID,
				MatchedTitle:      match.Title,
				Similarity:        match.Similarity,
				NewContentPercent: &pct,
				Reason:            "not enough new content to absorb",
			}
		}
	}

	namespaceID, err := s.provisionNamespaces(ctx, item.SuggestedNamespaces)
	if err != nil {
		return nil, nil, err
	}

	fingerprint := normalize.Fingerprint(normalize.Normalize(body))
	doc := &types.PublishedDocument{
		ID:             uuid.NewString(),
		Title:          item.Title,
		Body:           body,
		Namespace:      primary,
		NamespaceID:    namespaceID,
		Tags:           tags,
		Source:         source,
		ContentHash:    fingerprint,
		Embedding:      embedding,
		CurationItemID: item.ID,
		AbsorbedFrom:   res.AbsorbedFrom,
		CreatedAt:      s.now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, nil, fmt.Errorf("failed to create published document: %w", err)
	}

	if s.indexer != nil {
		meta := storage.IndexMetadata{Namespace: primary, Title: doc.Title, Tags: doc.Tags, Source: doc.Source}
		if err := s.indexer.IndexDocument(ctx, doc.ID, doc.Body, meta); err != nil {
			rbErr := s.rollback(ctx, doc)
			log.WithError(err).WithField("document_id", doc.ID).Error("indexing failed, approval rolled back")
			return nil, nil, &ApprovalRolledBackError{ItemID: item.ID, DocumentID: doc.ID, Err: err, RollbackErr: rbErr}
		}
	}

	res.PublishedDocumentID = doc.ID
	return doc, res, nil
}

// nearDuplicate returns the published match absorption should run against:
// a duplicate, or a candidate the adjudicator judged distinct.
func nearDuplicate(v *dedup.Verdict) *storage.SimilarityMatch {
	if v.IsDuplicate {
		return &storage.SimilarityMatch{ID: v.MatchedID, Title: v.MatchedTitle, Body: v.MatchedBody, Similarity: v.Similarity}
	}
	return v.Candidate
}

func (s *Store) provisionNamespaces(ctx context.Context, names []string) (string, error) {
	if s.namespaces == nil {
		return "", nil
	}
	primaryID := ""
	for i, name := range names {
		id, err := s.namespaces.CreateNamespaceIfMissing(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to provision namespace %q: %w", name, err)
		}
		if i == 0 {
			primaryID = id
		}
	}
	return primaryID, nil
}

func (s *Store) embedFragment(ctx context.Context, body string, log logrus.FieldLogger) []float64 {
	if s.embedder == nil {
		return nil
	}
	v, err := s.embedder.EmbedText(ctx, body)
	if err != nil {
		log.WithError(err).Warn("failed to embed absorbed fragment, publishing without embedding")
		return nil
	}
	return v
}

// rollback undoes a publish. It runs on a context detached from the
// caller's cancellation and reports the first compensation failure.
func (s *Store) rollback(ctx context.Context, doc *types.PublishedDocument) error {
	ctx = context.WithoutCancel(ctx)
	s.metrics.Rollback()

	var errs []error
	if s.indexer != nil {
		if err := s.indexer.RemoveDocument(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("remove index entries: %w", err))
		}
	}
	if err := s.documents.Delete(ctx, doc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		errs = append(errs, fmt.Errorf("delete document: %w", err))
	}
	if err := s.cache.Invalidate(ctx, doc.ContentHash); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.WithError(err).WithField("document_id", doc.ID).Error("rollback incomplete")
		return err
	}
	return nil
}

func (s *Store) cachePublished(ctx context.Context, doc *types.PublishedDocument) {
	err := s.cache.Put(ctx, doc.ContentHash, cache.Entry{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Body:       doc.Body,
		Namespace:  doc.Namespace,
	})
	if err != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Warn("failed to cache fingerprint")
	}
}
