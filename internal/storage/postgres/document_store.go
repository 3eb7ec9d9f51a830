package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// DocumentStore implements storage.DocumentStore using PostgreSQL.
type DocumentStore struct {
	db       *sql.DB
	pgvector bool
}

const documentColumns = `
	id, title, body, namespace, namespace_id, tags, source,
	content_hash, embedding, curation_item_id, absorbed_from, created_at`

// Create stores a new document.
func (s *DocumentStore) Create(ctx context.Context, doc *types.PublishedDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", storage.ErrInvalidInput)
	}

	columns := documentColumns
	args := []interface{}{
		doc.ID, doc.Title, doc.Body, doc.Namespace, doc.NamespaceID, marshalStrings(doc.Tags), doc.Source,
		doc.ContentHash, vector.Encode(doc.Embedding), doc.CurationItemID, doc.AbsorbedFrom, doc.CreatedAt.UTC(),
	}
	if s.pgvector {
		columns += ", embedding_vec"
		args = append(args, vectorValue(doc.Embedding))
	}

	query := fmt.Sprintf(`INSERT INTO published_documents (%s) VALUES (%s)`, columns, placeholders(1, len(args)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: document %s already exists", storage.ErrConflict, doc.ID)
		}
		return fmt.Errorf("postgres: failed to insert document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*types.PublishedDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM published_documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM published_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete document: %w", err)
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

// FindByHash returns the oldest document with the given content hash.
func (s *DocumentStore) FindByHash(ctx context.Context, hash string) (*types.PublishedDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM published_documents
		WHERE content_hash = $1 ORDER BY created_at LIMIT 1`, hash)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to find document by hash: %w", err)
	}
	return doc, nil
}

// SearchSimilar ranks documents by cosine similarity.
func (s *DocumentStore) SearchSimilar(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, nil
	}

	if s.pgvector {
		q := `
			SELECT id, title, body, namespace, 1 - (embedding_vec <=> $1) AS similarity
			FROM published_documents
			WHERE embedding_vec IS NOT NULL AND vector_dims(embedding_vec) = $2
			  AND id != $3 AND 1 - (embedding_vec <=> $1) >= $4`
		args := []interface{}{vectorValue(query), len(query), opts.ExcludeID, opts.MinSimilarity, opts.Limit}
		if opts.Namespace != "" {
			q += ` AND namespace = $6`
			args = append(args, opts.Namespace)
		}
		q += ` ORDER BY embedding_vec <=> $1 LIMIT $5`

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed vector search on documents: %w", err)
		}
		defer func() { _ = rows.Close() }()
		return scanMatches(rows, false)
	}

	q := `
		SELECT id, title, body, namespace, embedding
		FROM published_documents
		WHERE embedding IS NOT NULL AND id != $1`
	args := []interface{}{opts.ExcludeID, vectorSearchMaxCandidates}
	if opts.Namespace != "" {
		q += ` AND namespace = $3`
		args = append(args, opts.Namespace)
	}
	q += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load document embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches, err := rankRows(rows, query, opts.MinSimilarity, false)
	if err != nil {
		return nil, err
	}
	return storage.SortMatches(matches, opts.Limit), nil
}

func scanDocument(row rowScanner) (*types.PublishedDocument, error) {
	var (
		doc             types.PublishedDocument
		tags, embedding []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Body, &doc.Namespace, &doc.NamespaceID, &tags, &doc.Source,
		&doc.ContentHash, &embedding, &doc.CurationItemID, &doc.AbsorbedFrom, &doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Tags = unmarshalStrings(tags)
	doc.CreatedAt = doc.CreatedAt.UTC()
	if doc.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	return &doc, nil
}

var _ storage.DocumentStore = (*DocumentStore)(nil)
