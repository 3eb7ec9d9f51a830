package postgres

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

// CurationStore implements storage.CurationStore using PostgreSQL.
type CurationStore struct {
	db       *sql.DB
	pgvector bool
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
	args = append(args, item.PrimaryNamespace())

	columns := curationColumns + ", primary_namespace"
	if s.pgvector {
		columns += ", embedding_vec"
		args = append(args, vectorValue(item.Embedding))
	}

	query := fmt.Sprintf(`INSERT INTO curation_items (%s) VALUES (%s)`, columns, placeholders(1, len(args)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: item %s already exists", storage.ErrConflict, item.ID)
		}
		return fmt.Errorf("postgres: failed to insert curation item: %w", err)
	}
	return nil
}

// Get retrieves an item by ID.
func (s *CurationStore) Get(ctx context.Context, id string) (*types.CurationItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+curationColumns+` FROM curation_items WHERE id = $1`, id)
	item, err := scanCurationItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get curation item: %w", err)
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

	cols := strings.Split(strings.Join(strings.Fields(curationColumns), ""), ",")
	cols = append(cols[1:], "primary_namespace")
	values := append(args[1:], item.PrimaryNamespace())
	if s.pgvector {
		cols = append(cols, "embedding_vec")
		values = append(values, vectorValue(item.Embedding))
	}

	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	n := len(cols)
	query := fmt.Sprintf(`UPDATE curation_items SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(set, ", "), n+1, n+2)

	result, err := s.db.ExecContext(ctx, query, append(values, item.ID, string(expected))...)
	if err != nil {
		return fmt.Errorf("postgres: failed to update curation item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM curation_items WHERE id = $1`, item.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to read current status: %w", err)
	}
	return fmt.Errorf("%w: item %s is %s, expected %s", storage.ErrConflict, item.ID, current, expected)
}

// Delete removes an item permanently.
func (s *CurationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM curation_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete curation item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
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
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(opts.Statuses) > 0 {
		ph := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			ph[i] = arg(string(st))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if opts.Namespace != "" {
		where = append(where, "namespaces @> jsonb_build_array("+arg(opts.Namespace)+"::text)")
	}
	if opts.SubmittedBy != "" {
		where = append(where, "submitted_by = "+arg(opts.SubmittedBy))
	}
	if opts.ReviewedBy != "" {
		where = append(where, "reviewed_by = "+arg(opts.ReviewedBy))
	}
	if !opts.ChangedAfter.IsZero() {
		where = append(where, "status_changed_at > "+arg(opts.ChangedAfter.UTC()))
	}
	if !opts.ChangedBefore.IsZero() {
		where = append(where, "status_changed_at < "+arg(opts.ChangedBefore.UTC()))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM curation_items`+whereSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count curation items: %w", err)
	}

	// SortBy and SortOrder are whitelisted by Normalize.
	query := fmt.Sprintf(`SELECT %s FROM curation_items%s ORDER BY %s %s NULLS LAST, id LIMIT %s OFFSET %s`,
		curationColumns, whereSQL, opts.SortBy, strings.ToUpper(opts.SortOrder), arg(opts.Limit), arg(opts.Offset()))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list curation items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []types.CurationItem{}
	for rows.Next() {
		item, err := scanCurationItem(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan curation item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating curation items: %w", err)
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
		WHERE content_hash = $1 AND status = 'pending'
		ORDER BY submitted_at LIMIT 1`, hash)
	item, err := scanCurationItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to find pending item by hash: %w", err)
	}
	return item, nil
}

// SearchSimilarPending ranks pending items by cosine similarity, in the
// database when pgvector is available.
func (s *CurationStore) SearchSimilarPending(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, nil
	}

	if s.pgvector {
		q := `
			SELECT id, title, body, primary_namespace, 1 - (embedding_vec <=> $1) AS similarity
			FROM curation_items
			WHERE status = 'pending' AND embedding_vec IS NOT NULL
			  AND vector_dims(embedding_vec) = $2 AND id != $3
			  AND 1 - (embedding_vec <=> $1) >= $4`
		args := []interface{}{vectorValue(query), len(query), opts.ExcludeID, opts.MinSimilarity}
		if opts.Namespace != "" {
			q += ` AND primary_namespace = $6`
		}
		q += ` ORDER BY embedding_vec <=> $1 LIMIT $5`
		args = append(args, opts.Limit)
		if opts.Namespace != "" {
			args = append(args, opts.Namespace)
		}

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed vector search on pending items: %w", err)
		}
		defer func() { _ = rows.Close() }()
		return scanMatches(rows, true)
	}

	q := `
		SELECT id, title, body, primary_namespace, embedding
		FROM curation_items
		WHERE status = 'pending' AND embedding IS NOT NULL AND id != $1`
	args := []interface{}{opts.ExcludeID, vectorSearchMaxCandidates}
	if opts.Namespace != "" {
		q += ` AND primary_namespace = $3`
		args = append(args, opts.Namespace)
	}
	q += ` ORDER BY submitted_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load pending embeddings: %w", err)
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
		WHERE status = 'rejected' AND expires_at IS NOT NULL AND expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete expired rejected items: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// DeleteDecidedBefore removes decided items whose status changed before cutoff.
func (s *CurationStore) DeleteDecidedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM curation_items
		WHERE status IN ('approved', 'rejected') AND status_changed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete decided items: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// curationArgs returns column values in curationColumns order.
func curationArgs(item *types.CurationItem) ([]interface{}, error) {
	var analysis interface{}
	if item.AutoAnalysis != nil {
		data, err := json.Marshal(item.AutoAnalysis)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to marshal auto analysis: %w", err)
		}
		analysis = string(data)
	}

	var score sql.NullFloat64
	if item.QualityScore != nil {
		score = sql.NullFloat64{Float64: *item.QualityScore, Valid: true}
	}

	return []interface{}{
		item.ID, item.Title, item.Body, marshalStrings(item.Tags), marshalStrings(item.SuggestedNamespaces), item.SubmittedBy,
		item.ContentHash, item.NormalizedBody, vector.Encode(item.Embedding),
		score, analysis, item.DecisionReason,
		string(item.Status), item.SubmittedAt.UTC(), nullTime(item.ReviewedAt), item.ReviewedBy, item.StatusChangedAt.UTC(),
		nullTime(item.ExpiresAt), item.PublishedDocumentID, item.UpdatedAt.UTC(),
	}, nil
}

func scanCurationItem(row rowScanner) (*types.CurationItem, error) {
	var (
		item                 types.CurationItem
		tags, namespaces     []byte
		analysis, embedding  []byte
		status               string
		score                sql.NullFloat64
		reviewedAt, expireAt sql.NullTime
	)

	err := row.Scan(
		&item.ID, &item.Title, &item.Body, &tags, &namespaces, &item.SubmittedBy,
		&item.ContentHash, &item.NormalizedBody, &embedding,
		&score, &analysis, &item.DecisionReason,
		&status, &item.SubmittedAt, &reviewedAt, &item.ReviewedBy, &item.StatusChangedAt,
		&expireAt, &item.PublishedDocumentID, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Tags = unmarshalStrings(tags)
	item.SuggestedNamespaces = unmarshalStrings(namespaces)
	item.Status = types.CurationStatus(status)
	item.SubmittedAt = item.SubmittedAt.UTC()
	item.StatusChangedAt = item.StatusChangedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	item.ReviewedAt = timePtr(reviewedAt)
	item.ExpiresAt = timePtr(expireAt)

	if item.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		item.QualityScore = &v
	}
	if len(analysis) > 0 {
		var a types.AutoAnalysis
		if err := json.Unmarshal(analysis, &a); err != nil {
			return nil, fmt.Errorf("postgres: failed to unmarshal auto analysis: %w", err)
		}
		item.AutoAnalysis = &a
	}
	return &item, nil
}

// placeholders returns "$from, ..., $(from+n-1)".
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

var _ storage.CurationStore = (*CurationStore)(nil)
