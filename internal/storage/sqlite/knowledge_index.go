package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// KnowledgeIndex is an FTS5 full-text index of published documents.
type KnowledgeIndex struct {
	db *sql.DB
}

// IndexDocument adds or replaces the index entry for docID.
func (k *KnowledgeIndex) IndexDocument(ctx context.Context, docID, content string, meta storage.IndexMetadata) error {
	if docID == "" {
		return fmt.Errorf("%w: document ID is required", storage.ErrInvalidInput)
	}

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_fts WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to clear index entry: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO knowledge_fts (doc_id, namespace, source, title, body, tags)
		VALUES (?, ?, ?, ?, ?, ?)`,
		docID, meta.Namespace, meta.Source, meta.Title, content, strings.Join(meta.Tags, " "))
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	return tx.Commit()
}

// RemoveDocument deletes every index entry for docID. Removing an entry
// that does not exist is not an error.
func (k *KnowledgeIndex) RemoveDocument(ctx context.Context, docID string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM knowledge_fts WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}
	return nil
}

// Search runs a full-text query, optionally restricted to a namespace.
func (k *KnowledgeIndex) Search(ctx context.Context, query, namespace string, limit int) ([]storage.KnowledgeHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 10
	}

	q := `
		SELECT doc_id, namespace, title, snippet(knowledge_fts, 4, '', '', '...', 16), bm25(knowledge_fts)
		FROM knowledge_fts
		WHERE knowledge_fts MATCH ?`
	args := []interface{}{match}
	if namespace != "" {
		q += ` AND namespace = ?`
		args = append(args, namespace)
	}
	q += ` ORDER BY bm25(knowledge_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := k.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []storage.KnowledgeHit
	for rows.Next() {
		var h storage.KnowledgeHit
		if err := rows.Scan(&h.DocumentID, &h.Namespace, &h.Title, &h.Snippet, &h.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of index entries for docID.
func (k *KnowledgeIndex) Count(ctx context.Context, docID string) (int, error) {
	var n int
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_fts WHERE doc_id = ?`, docID).Scan(&n)
	return n, err
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
