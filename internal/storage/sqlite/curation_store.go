package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// CurationStore implements storage.CurationStore using SQLite.
type CurationStore struct {
	db *sql.DB
}

const curationColumns = `
	id, title, body, tags, namespaces, submitted_by,
	content_hash, normalized_body, embedding,
	quality_score, auto_analysis, decision_reason,
	status, submitted_at, reviewed_at, reviewed_by, status_changed_at,
	expires_at, published_document_id, updated_at`

// Insert creates a new item.
func (s *CurationStore) Insert(ctx context.Context, item *types.CurationItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}
	if item.ContentHash == "" {
		return fmt.Errorf("%w: content hash is required", storage.ErrInvalidInput)
	}

	args, err := curationArgs(item)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO curation_items (`+curationColumns+`, primary_namespace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, item.PrimaryNamespace())...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: item %s already exists", storage.ErrConflict, item.ID)
		}
		return fmt.Errorf("failed to insert curation item: %w", err)
	}
	return nil
}

// Get retrieves an item by ID.
func (s *CurationStore) Get(ctx context.Context, id string) (*types.CurationItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+curationColumns+` FROM curation_items WHERE id = ?`, id)
	item, err := scanCurationItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get curation item: %w", err)
	}
	return item, nil
}

// Update replaces the row if its status still equals expected.
func (s *CurationStore) Update(ctx context.Context, item *types.CurationItem, expected types.CurationStatus) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item ID is required", storage.ErrInvalidInput)
	}

	args, err := curationArgs(item)
	if err != nil {
		return err
	}

	// args[0] is the id; the SET list takes the rest in column order.
	setArgs := append(args[1:], item.PrimaryNamespace(), item.ID, string(expected))
	result, err := s.db.ExecContext(ctx, `
		UPDATE curation_items SET
			title = ?, body = ?, tags = ?, namespaces = ?, submitted_by = ?,
			content_hash = ?, normalized_body = ?, embedding = ?,
			quality_score = ?, auto_analysis = ?, decision_reason = ?,
			status = ?, submitted_at = ?, reviewed_at = ?, reviewed_by = ?, status_changed_at = ?,
			expires_at = ?, published_document_id = ?, updated_at = ?,
			primary_namespace = ?
		WHERE id = ? AND status = ?`, setArgs...)
	if err != nil {
		return fmt.Errorf("failed to update curation item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM curation_items WHERE id = ?`, item.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read current status: %w", err)
	}
	return fmt.Errorf("%w: item %s is %s, expected %s", storage.ErrConflict, item.ID, current, expected)
}

// Delete removes an item permanently.
func (s *CurationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM curation_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete curation item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves items with pagination and filtering.
func (s *CurationStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.CurationItem], error) {
	opts.Normalize()

	var where []string
	var args []interface{}

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if opts.Namespace != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(curation_items.namespaces) WHERE json_each.value = ?)")
		args = append(args, opts.Namespace)
	}
	if opts.SubmittedBy != "" {
		where = append(where, "submitted_by = ?")
		args = append(args, opts.SubmittedBy)
	}
	if opts.ReviewedBy != "" {
		where = append(where, "reviewed_by = ?")
		args = append(args, opts.ReviewedBy)
	}
	if !opts.ChangedAfter.IsZero() {
		where = append(where, "status_changed_at > ?")
		args = append(args, formatTime(opts.ChangedAfter))
	}
	if !opts.ChangedBefore.IsZero() {
		where = append(where, "status_changed_at < ?")
		args = append(args, formatTime(opts.ChangedBefore))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM curation_items`+whereSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count curation items: %w", err)
	}

	// SortBy and SortOrder are whitelisted by Normalize.
	query := fmt.Sprintf(`SELECT %s FROM curation_items%s ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		curationColumns, whereSQL, opts.SortBy, strings.ToUpper(opts.SortOrder))
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to list curation items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []types.CurationItem{}
	for rows.Next() {
		item, err := scanCurationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curation item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating curation items: %w", err)
	}

	return &storage.PaginatedResult[types.CurationItem]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// FindPendingByHash returns the pending item with the given content hash.
func (s *CurationStore) FindPendingByHash(ctx context.Context, hash string) (*types.CurationItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+curationColumns+` FROM curation_items
		WHERE content_hash = ? AND status = 'pending'
		ORDER BY submitted_at LIMIT 1`, hash)
	item, err := scanCurationItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pending item by hash: %w", err)
	}
	return item, nil
}

// SearchSimilarPending loads pending embeddings and ranks them in Go.
func (s *CurationStore) SearchSimilarPending(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, nil
	}

	q := `
		SELECT id, title, body, primary_namespace, embedding
		FROM curation_items
		WHERE status = 'pending' AND embedding IS NOT NULL AND id != ?`
	args := []interface{}{opts.ExcludeID}
	if opts.Namespace != "" {
		q += ` AND primary_namespace = ?`
		args = append(args, opts.Namespace)
	}
	q += ` ORDER BY submitted_at DESC LIMIT ?`
	args = append(args, vectorSearchMaxCandidates)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches, err := rankRows(rows, query, opts.MinSimilarity, true)
	if err != nil {
		return nil, err
	}
	return storage.SortMatches(matches, opts.Limit), nil
}

// DeleteExpiredRejected removes rejected items past expires_at.
func (s *CurationStore) DeleteExpiredRejected(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM curation_items
		WHERE status = 'rejected' AND expires_at IS NOT NULL AND expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rejected items: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// DeleteDecidedBefore removes decided items whose status changed before cutoff.
func (s *CurationStore) DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM curation_items
		WHERE status IN ('approved', 'rejected') AND status_changed_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete decided items: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// curationArgs returns column values in curationColumns order.
func curationArgs(item *types.CurationItem) ([]interface{}, error) {
	var analysis sql.NullString
	if item.AutoAnalysis != nil {
		data, err := json.Marshal(item.AutoAnalysis)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal auto analysis: %w", err)
		}
		analysis = sql.NullString{String: string(data), Valid: true}
	}

	var score sql.NullFloat64
	if item.QualityScore != nil {
		score = sql.NullFloat64{Float64: *item.QualityScore, Valid: true}
	}

	return []interface{}{
		item.ID, item.Title, item.Body, marshalStrings(item.Tags), marshalStrings(item.SuggestedNamespaces), item.SubmittedBy,
		item.ContentHash, item.NormalizedBody, vector.Encode(item.Embedding),
		score, analysis, item.DecisionReason,
		string(item.Status), formatTime(item.SubmittedAt), formatNullTime(item.ReviewedAt), item.ReviewedBy, formatTime(item.StatusChangedAt),
		formatNullTime(item.ExpiresAt), item.PublishedDocumentID, formatTime(item.UpdatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCurationItem(row rowScanner) (*types.CurationItem, error) {
	var (
		item                                    types.CurationItem
		tags, namespaces, status                string
		embedding                               []byte
		score                                   sql.NullFloat64
		analysis, reviewedAt, expiresAt         sql.NullString
		submittedAt, statusChangedAt, updatedAt string
	)

	err := row.Scan(
		&item.ID, &item.Title, &item.Body, &tags, &namespaces, &item.SubmittedBy,
		&item.ContentHash, &item.NormalizedBody, &embedding,
		&score, &analysis, &item.DecisionReason,
		&status, &submittedAt, &reviewedAt, &item.ReviewedBy, &statusChangedAt,
		&expiresAt, &item.PublishedDocumentID, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Tags = unmarshalStrings(tags)
	item.SuggestedNamespaces = unmarshalStrings(namespaces)
	item.Status = types.CurationStatus(status)

	if item.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		item.QualityScore = &v
	}
	if analysis.Valid && analysis.String != "" {
		var a types.AutoAnalysis
		if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auto analysis: %w", err)
		}
		item.AutoAnalysis = &a
	}

	if item.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, err
	}
	if item.StatusChangedAt, err = parseTime(statusChangedAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if item.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
		return nil, err
	}
	if item.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, err
	}

	return &item, nil
}

// rankRows scores (id, title, body, namespace, embedding) rows against query.
func rankRows(rows *sql.Rows, query []float64, minSimilarity float64, pending bool) ([]storage.SimilarityMatch, error) {
	var matches []storage.SimilarityMatch
	for rows.Next() {
		var m storage.SimilarityMatch
		var blob []byte
		if err := rows.Scan(&m.ID, &m.Title, &m.Body, &m.Namespace, &blob); err != nil {
			continue
		}
		emb, err := vector.Decode(blob)
		if err != nil || len(emb) == 0 {
			continue
		}
		m.Similarity = vector.Cosine(query, emb)
		if m.Similarity < minSimilarity {
			continue
		}
		m.Pending = pending
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}
	return matches, nil
}

var _ storage.CurationStore = (*CurationStore)(nil)
