package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// KnowledgeIndex is a tsvector full-text index of published documents.
type KnowledgeIndex struct {
	db *sql.DB
}

// IndexDocument adds or replaces the index entry for docID.
func (k *KnowledgeIndex) IndexDocument(ctx context.Context, docID, content string, meta storage.IndexMetadata) error {
	if docID == "" {
		return fmt.Errorf("%w: document ID is required", storage.ErrInvalidInput)
	}

	_, err := k.db.ExecContext(ctx, `
		INSERT INTO knowledge_index (doc_id, namespace, source, title, body, tags, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (doc_id) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			tags = EXCLUDED.tags,
			indexed_at = EXCLUDED.indexed_at`,
		docID, meta.Namespace, meta.Source, meta.Title, content, strings.Join(meta.Tags, " "))
	if err != nil {
		return fmt.Errorf("postgres: failed to index document %s: %w", docID, err)
	}
	return nil
}

// RemoveDocument deletes the index entry for docID. Removing an entry that
// does not exist is not an error.
func (k *KnowledgeIndex) RemoveDocument(ctx context.Context, docID string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM knowledge_index WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("postgres: failed to remove index entry %s: %w", docID, err)
	}
	return nil
}

// Search runs a plain-text query, optionally restricted to a namespace.
// Hits are ordered by ts_rank, best first; snippet matches are wrapped in **.
func (k *KnowledgeIndex) Search(ctx context.Context, query, namespace string, limit int) ([]storage.KnowledgeHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := k.db.QueryContext(ctx, `
		SELECT doc_id, namespace, title,
			ts_headline('english', body, plainto_tsquery('english', $1),
				'StartSel=**, StopSel=**, MaxWords=16, MinWords=4'),
			ts_rank(content_tsv, plainto_tsquery('english', $1))
		FROM knowledge_index
		WHERE content_tsv @@ plainto_tsquery('english', $1)
			AND ($2 = '' OR namespace = $2)
		ORDER BY ts_rank(content_tsv, plainto_tsquery('english', $1)) DESC, doc_id
		LIMIT $3`, query, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: knowledge search %q: %w", query, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []storage.KnowledgeHit
	for rows.Next() {
		var h storage.KnowledgeHit
		if err := rows.Scan(&h.DocumentID, &h.Namespace, &h.Title, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of index entries for docID.
func (k *KnowledgeIndex) Count(ctx context.Context, docID string) (int, error) {
	var n int
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_index WHERE doc_id = $1`, docID).Scan(&n)
	return n, err
}
