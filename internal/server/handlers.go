package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ReviewerHeader names the acting reviewer when the body does not.
const ReviewerHeader = "X-Curation-Reviewer"

type handlers struct {
	store  *curation.Store
	logger logrus.FieldLogger
}

type submitRequest struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Namespaces  []string `json:"namespaces"`
	Tags        []string `json:"tags"`
	SubmittedBy string   `json:"submitted_by"`
}

type editRequest struct {
	Title      *string   `json:"title"`
	Body       *string   `json:"body"`
	Tags       *[]string `json:"tags"`
	Namespaces *[]string `json:"namespaces"`
}

type decisionRequest struct {
	Reviewer string `json:"reviewer"`
	Note     string `json:"note"`
}

type listResponse struct {
	Items    []types.CurationItem `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	HasMore  bool                 `json:"has_more"`
}

type approvalResponse struct {
	Item                *types.CurationItem `json:"item"`
	PublishedDocumentID string              `json:"published_document_id"`
	AbsorbedFrom        string              `json:"absorbed_from,omitempty"`
	NewContentPercent   float64             `json:"new_content_percent"`
}

type analysisResponse struct {
	Item     *types.CurationItem  `json:"item"`
	Analysis *types.AutoAnalysis  `json:"analysis"`
	Decision decision.Decision    `json:"decision"`
	Executed types.Recommendation `json:"executed,omitempty"`
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.store.Submit(r.Context(), curation.SubmitRequest{
		Title:       req.Title,
		Body:        req.Body,
		Namespaces:  req.Namespaces,
		Tags:        req.Tags,
		SubmittedBy: req.SubmittedBy,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.store.EditPending(r.Context(), r.PathValue("id"), curation.Updates{
		Title:      req.Title,
		Body:       req.Body,
		Tags:       req.Tags,
		Namespaces: req.Namespaces,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.RunAutoAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, analysisResponse{
		Item:     out.Item,
		Analysis: out.Analysis,
		Decision: out.Decision,
		Executed: out.Executed,
	})
}

func (h *handlers) approve(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.store.Approve(r.Context(), r.PathValue("id"), reviewer(r, req), req.Note)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toApprovalResponse(res))
}

func (h *handlers) publish(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.store.PublishApproved(r.Context(), r.PathValue("id"), reviewer(r, req))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toApprovalResponse(res))
}

func (h *handlers) reject(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	item, err := h.store.Reject(r.Context(), r.PathValue("id"), reviewer(r, req), req.Note)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *handlers) listAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.ListAll)
}

func (h *handlers) listPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.ListPending)
}

func (h *handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.store.ListHistory)
}

func (h *handlers) retention(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.RunRetentionCleanup(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"expired_rejected": res.ExpiredRejected,
		"past_ceiling":     res.PastCeiling,
	}).Info("retention cleanup via API")
	respondJSON(w, http.StatusOK, res)
}

type lister func(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error)

func (h *handlers) list(w http.ResponseWriter, r *http.Request, fn lister) {
	opts, err := parseListOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	page, err := fn(r.Context(), opts)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []types.CurationItem{}
	}
	respondJSON(w, http.StatusOK, listResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	})
}

func parseListOptions(r *http.Request) (storage.ListOptions, error) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Page:        parseInt(q.Get("page"), 1),
		Limit:       parseInt(q.Get("limit"), 50),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
		Namespace:   q.Get("namespace"),
		SubmittedBy: q.Get("submitted_by"),
		ReviewedBy:  q.Get("reviewed_by"),
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := types.CurationStatus(strings.TrimSpace(s))
			if !st.IsValid() {
				return opts, fmt.Errorf("invalid status %q", s)
			}
			opts.Statuses = append(opts.Statuses, st)
		}
	}

	var err error
	if opts.ChangedAfter, err = parseTime(q.Get("changed_after")); err != nil {
		return opts, fmt.Errorf("invalid changed_after: %w", err)
	}
	if opts.ChangedBefore, err = parseTime(q.Get("changed_before")); err != nil {
		return opts, fmt.Errorf("invalid changed_before: %w", err)
	}
	return opts, nil
}

func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return v
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func reviewer(r *http.Request, req decisionRequest) string {
	if req.Reviewer != "" {
		return req.Reviewer
	}
	if h := strings.TrimSpace(r.Header.Get(ReviewerHeader)); h != "" {
		return h
	}
	return "api"
}

func toApprovalResponse(res *curation.ApprovalResult) approvalResponse {
	return approvalResponse{
		Item:                res.Item,
		PublishedDocumentID: res.PublishedDocumentID,
		AbsorbedFrom:        res.AbsorbedFrom,
		NewContentPercent:   res.NewContentPercent,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return decodeBody(w, r, v, false)
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return decodeBody(w, r, v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	respondError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"error": err.Error()})
	return false
}
