package curation

import (
	"fmt"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// DuplicateContentError reports a submission or approval refused because
// the content is already known. It is an expected outcome, not a fault.
type DuplicateContentError struct {
	MatchedID    string
	MatchedTitle string
	Similarity   float64
	IsPending    bool // the match is another queue item

	// NewContentPercent is set when absorption was attempted, nil otherwise.
	NewContentPercent *float64

	Reason string
}

func (e *DuplicateContentError) Error() string {
	msg := fmt.Sprintf("duplicate of %s (similarity %.3f)", e.MatchedID, e.Similarity)
	if e.NewContentPercent != nil {
		msg += fmt.Sprintf(", %.1f%% new content", *e.NewContentPercent)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// NotFoundError reports an operation on an item that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("curation item %s not found", e.ID)
}

// Is lets errors.Is(err, storage.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == storage.ErrNotFound
}

// InvalidStateTransitionError reports an operation the item's status does not allow.
type InvalidStateTransitionError struct {
	ID        string
	Operation string
	Status    types.CurationStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s item %s in status %s", e.Operation, e.ID, e.Status)
}

// ApprovalRolledBackError reports an approval that failed after the
// published document was created and was compensated. The item keeps its
// previous status.
type ApprovalRolledBackError struct {
	ItemID     string
	DocumentID string
	Err        error

	// RollbackErr is set when a compensating step also failed and an
	// orphan may remain.
	RollbackErr error
}

func (e *ApprovalRolledBackError) Error() string {
	msg := fmt.Sprintf("approval of %s failed and was rolled back: %v", e.ItemID, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.RollbackErr)
	}
	return msg
}

func (e *ApprovalRolledBackError) Unwrap() error {
	return e.Err
}
