package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    http.StatusText(statusCode),
		Details: details,
	})
}

// respondStoreError maps queue errors to status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	var (
		dup        *curation.DuplicateContentError
		transition *curation.InvalidStateTransitionError
		rolledBack *curation.ApprovalRolledBackError
		timeout    *llm.TimeoutError
	)
	switch {
	case errors.As(err, &dup):
		details := map[string]interface{}{
			"matched_id":    dup.MatchedID,
			"matched_title": dup.MatchedTitle,
			"similarity":    dup.Similarity,
			"is_pending":    dup.IsPending,
		}
		if dup.NewContentPercent != nil {
			details["new_content_percent"] = *dup.NewContentPercent
		}
		respondError(w, http.StatusConflict, err.Error(), details)
	case errors.As(err, &transition):
		respondError(w, http.StatusConflict, err.Error(), map[string]interface{}{"status": transition.Status})
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &rolledBack):
		respondError(w, http.StatusBadGateway, err.Error(), map[string]interface{}{"document_id": rolledBack.DocumentID})
	case errors.As(err, &timeout):
		respondError(w, http.StatusGatewayTimeout, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", map[string]interface{}{"error": err.Error()})
	}
}
