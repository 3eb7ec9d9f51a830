package types

// IsValidStatusTransition validates curation status transitions.
//
// Valid transitions:
//
//	pending -> approved | rejected
//	approved -> (terminal, no transitions out)
//	rejected -> (terminal, no transitions out)
//
// Backfilling PublishedDocumentID on an approved item is not a status
// transition and is not governed by this function.
func IsValidStatusTransition(current, next CurationStatus) bool {
	if !next.IsValid() {
		return false
	}

	switch current {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected

	case StatusApproved, StatusRejected:
		return false

	default:
		return false // Unknown current status
	}
}
