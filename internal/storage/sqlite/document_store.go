package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// DocumentStore implements storage.DocumentStore using SQLite.
type DocumentStore struct {
	db *sql.DB
}

const documentColumns = `
	id, title, body, namespace, namespace_id, tags, source,
	content_hash, embedding, curation_item_id, absorbed_from, created_at`

// Create stores a new document.
func (s *DocumentStore) Create(ctx context.Context, doc *types.PublishedDocument) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document ID is required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO published_documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Body, doc.Namespace, doc.NamespaceID, marshalStrings(doc.Tags), doc.Source,
		doc.ContentHash, vector.Encode(doc.Embedding), doc.CurationItemID, doc.AbsorbedFrom, formatTime(doc.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: document %s already exists", storage.ErrConflict, doc.ID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*types.PublishedDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM published_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM published_documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
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

// FindByHash returns the oldest document with the given content hash.
func (s *DocumentStore) FindByHash(ctx context.Context, hash string) (*types.PublishedDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM published_documents
		WHERE content_hash = ? ORDER BY created_at LIMIT 1`, hash)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find document by hash: %w", err)
	}
	return doc, nil
}

// SearchSimilar loads candidate embeddings and ranks them in Go.
func (s *DocumentStore) SearchSimilar(ctx context.Context, query []float64, opts storage.SimilarityOptions) ([]storage.SimilarityMatch, error) {
	opts.Normalize()
	if len(query) == 0 {
		return nil, nil
	}

	q := `
		SELECT id, title, body, namespace, embedding
		FROM published_documents
		WHERE embedding IS NOT NULL AND id != ?`
	args := []interface{}{opts.ExcludeID}
	if opts.Namespace != "" {
		q += ` AND namespace = ?`
		args = append(args, opts.Namespace)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, vectorSearchMaxCandidates)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load document embeddings: %w", err)
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
		doc       types.PublishedDocument
		tags      string
		embedding []byte
		createdAt string
	)
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Body, &doc.Namespace, &doc.NamespaceID, &tags, &doc.Source,
		&doc.ContentHash, &embedding, &doc.CurationItemID, &doc.AbsorbedFrom, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Tags = unmarshalStrings(tags)
	if doc.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

var _ storage.DocumentStore = (*DocumentStore)(nil)
