package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// FrequencyStore implements storage.FrequencyStore using PostgreSQL.
type FrequencyStore struct {
	db       *sql.DB
	pgvector bool
}

const frequencyColumns = `
	id, hash, normalized_text, embedding, hit_count, namespace,
	first_seen_at, last_seen_at, decayed_count, last_correlation_id`

// FindNearest returns the closest record in the namespace scope.
func (s *FrequencyStore) FindNearest(ctx context.Context, query []float64, namespace string) (*types.QueryFrequencyRecord, float64, error) {
	if s.pgvector && len(query) > 0 {
		row := s.db.QueryRowContext(ctx, `
			SELECT `+frequencyColumns+`, 1 - (embedding_vec <=> $1) AS similarity
			FROM query_frequency
			WHERE namespace = $2 AND embedding_vec IS NOT NULL AND vector_dims(embedding_vec) = $3
			ORDER BY embedding_vec <=> $1 LIMIT 1`, vectorValue(query), namespace, len(query))

		var sim float64
		rec, err := scanFrequency(row, &sim)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, 0, storage.ErrNotFound
			}
			return nil, 0, fmt.Errorf("postgres: failed vector search on frequency records: %w", err)
		}
		return rec, sim, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frequencyColumns+` FROM query_frequency
		WHERE namespace = $1 AND embedding IS NOT NULL
		ORDER BY last_seen_at DESC LIMIT $2`, namespace, vectorSearchMaxCandidates)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: failed to load frequency records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var best *types.QueryFrequencyRecord
	bestSim := -2.0
	for rows.Next() {
		rec, err := scanFrequency(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: failed to scan frequency record: %w", err)
		}
		if sim := vector.Cosine(query, rec.Embedding); sim > bestSim {
			best, bestSim = rec, sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: error iterating frequency records: %w", err)
	}
	if best == nil {
		return nil, 0, storage.ErrNotFound
	}
	return best, bestSim, nil
}

// Insert creates a new record.
func (s *FrequencyStore) Insert(ctx context.Context, rec *types.QueryFrequencyRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record ID is required", storage.ErrInvalidInput)
	}
	if rec.HitCount < 1 {
		return fmt.Errorf("%w: hit count must be at least 1", storage.ErrInvalidInput)
	}

	columns := frequencyColumns
	args := []interface{}{
		rec.ID, rec.Hash, rec.NormalizedText, vector.Encode(rec.Embedding), rec.HitCount, rec.Namespace,
		rec.FirstSeenAt.UTC(), rec.LastSeenAt.UTC(), rec.DecayedCount, rec.LastCorrelationID,
	}
	if s.pgvector {
		columns += ", embedding_vec"
		args = append(args, vectorValue(rec.Embedding))
	}

	query := fmt.Sprintf(`INSERT INTO query_frequency (%s) VALUES (%s)`, columns, placeholders(1, len(args)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: record %s already exists", storage.ErrConflict, rec.ID)
		}
		return fmt.Errorf("postgres: failed to insert frequency record: %w", err)
	}
	return nil
}

// RecordHit increments hit_count in a single statement.
func (s *FrequencyStore) RecordHit(ctx context.Context, id string, seenAt time.Time, correlationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE query_frequency
		SET hit_count = hit_count + 1, last_seen_at = $1, last_correlation_id = COALESCE(NULLIF($2, ''), last_correlation_id)
		WHERE id = $3`, seenAt.UTC(), correlationID, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to record hit: %w", err)
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

// ListAll returns every record.
func (s *FrequencyStore) ListAll(ctx context.Context) ([]*types.QueryFrequencyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+frequencyColumns+` FROM query_frequency ORDER BY first_seen_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list frequency records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.QueryFrequencyRecord
	for rows.Next() {
		rec, err := scanFrequency(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan frequency record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetDecayedCount persists a precomputed decayed count.
func (s *FrequencyStore) SetDecayedCount(ctx context.Context, id string, decayed float64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE query_frequency SET decayed_count = $1 WHERE id = $2`, decayed, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to set decayed count: %w", err)
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

// DeleteStale removes records last seen before cutoff with hit_count below minHits.
func (s *FrequencyStore) DeleteStale(ctx context.Context, cutoff time.Time, minHits int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM query_frequency WHERE last_seen_at < $1 AND hit_count < $2`, cutoff.UTC(), minHits)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete stale frequency records: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// scanFrequency reads frequencyColumns plus any trailing extra columns.
func scanFrequency(row rowScanner, extra ...interface{}) (*types.QueryFrequencyRecord, error) {
	var (
		rec       types.QueryFrequencyRecord
		embedding []byte
	)
	dest := []interface{}{
		&rec.ID, &rec.Hash, &rec.NormalizedText, &embedding, &rec.HitCount, &rec.Namespace,
		&rec.FirstSeenAt, &rec.LastSeenAt, &rec.DecayedCount, &rec.LastCorrelationID,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	var err error
	if rec.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	rec.FirstSeenAt = rec.FirstSeenAt.UTC()
	rec.LastSeenAt = rec.LastSeenAt.UTC()
	return &rec, nil
}

var _ storage.FrequencyStore = (*FrequencyStore)(nil)
