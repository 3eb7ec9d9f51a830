package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/vector"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/pkg/types"
)

// FrequencyStore implements storage.FrequencyStore using SQLite.
type FrequencyStore struct {
	db *sql.DB
}

const frequencyColumns = `
	id, hash, normalized_text, embedding, hit_count, namespace,
	first_seen_at, last_seen_at, decayed_count, last_correlation_id`

// FindNearest scans the namespace scope and returns the closest record.
func (s *FrequencyStore) FindNearest(ctx context.Context, query []float64, namespace string) (*types.QueryFrequencyRecord, float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frequencyColumns+` FROM query_frequency
		WHERE namespace = ? AND embedding IS NOT NULL
		ORDER BY last_seen_at DESC LIMIT ?`, namespace, vectorSearchMaxCandidates)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load frequency records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var best *types.QueryFrequencyRecord
	bestSim := -2.0
	for rows.Next() {
		rec, err := scanFrequency(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan frequency record: %w", err)
		}
		sim := vector.Cosine(query, rec.Embedding)
		if sim > bestSim {
			best, bestSim = rec, sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating frequency records: %w", err)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_frequency (`+frequencyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Hash, rec.NormalizedText, vector.Encode(rec.Embedding), rec.HitCount, rec.Namespace,
		formatTime(rec.FirstSeenAt), formatTime(rec.LastSeenAt), rec.DecayedCount, rec.LastCorrelationID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: record %s already exists", storage.ErrConflict, rec.ID)
		}
		return fmt.Errorf("failed to insert frequency record: %w", err)
	}
	return nil
}

// RecordHit increments hit_count in a single statement.
func (s *FrequencyStore) RecordHit(ctx context.Context, id string, seenAt time.Time, correlationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE query_frequency
		SET hit_count = hit_count + 1, last_seen_at = ?, last_correlation_id = COALESCE(NULLIF(?, ''), last_correlation_id)
		WHERE id = ?`, formatTime(seenAt), correlationID, id)
	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
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

// ListAll returns every record.
func (s *FrequencyStore) ListAll(ctx context.Context) ([]*types.QueryFrequencyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+frequencyColumns+` FROM query_frequency ORDER BY first_seen_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list frequency records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.QueryFrequencyRecord
	for rows.Next() {
		rec, err := scanFrequency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frequency record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetDecayedCount persists a precomputed decayed count.
func (s *FrequencyStore) SetDecayedCount(ctx context.Context, id string, decayed float64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE query_frequency SET decayed_count = ? WHERE id = ?`, decayed, id)
	if err != nil {
		return fmt.Errorf("failed to set decayed count: %w", err)
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

// DeleteStale removes records last seen before cutoff with hit_count below minHits.
func (s *FrequencyStore) DeleteStale(ctx context.Context, cutoff time.Time, minHits int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM query_frequency WHERE last_seen_at < ? AND hit_count < ?`,
		formatTime(cutoff), minHits)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale frequency records: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func scanFrequency(row rowScanner) (*types.QueryFrequencyRecord, error) {
	var (
		rec                 types.QueryFrequencyRecord
		embedding           []byte
		firstSeen, lastSeen string
	)
	err := row.Scan(
		&rec.ID, &rec.Hash, &rec.NormalizedText, &embedding, &rec.HitCount, &rec.Namespace,
		&firstSeen, &lastSeen, &rec.DecayedCount, &rec.LastCorrelationID,
	)
	if err != nil {
		return nil, err
	}
	if rec.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	if rec.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if rec.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ storage.FrequencyStore = (*FrequencyStore)(nil)
