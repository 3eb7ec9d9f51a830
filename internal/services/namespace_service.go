// Package services holds small SQL-backed services that sit next to the
// storage backends and share their database handle.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// Dialect selects the placeholder style of the underlying database.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// NamespaceService resolves namespace names to stable IDs, creating rows on
// first use. It implements curation.NamespaceRegistry.
type NamespaceService struct {
	db      *sql.DB
	dialect Dialect
}

// NewNamespaceService creates a NamespaceService over db.
func NewNamespaceService(db *sql.DB, dialect Dialect) *NamespaceService {
	return &NamespaceService{db: db, dialect: dialect}
}

// CreateNamespaceIfMissing returns the ID of name, inserting it when absent.
// Concurrent callers racing on the same name all get the winner's ID.
func (s *NamespaceService) CreateNamespaceIfMissing(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: namespace name is required", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO namespaces (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING"),
		uuid.New().String(), name)
	if err != nil {
		return "", fmt.Errorf("failed to create namespace %q: %w", name, err)
	}

	return s.lookup(ctx, name)
}

// Get returns the ID of an existing namespace.
// Returns storage.ErrNotFound when the namespace has never been created.
func (s *NamespaceService) Get(ctx context.Context, name string) (string, error) {
	return s.lookup(ctx, strings.TrimSpace(name))
}

// List returns every known namespace name in alphabetical order.
func (s *NamespaceService) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *NamespaceService) lookup(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT id FROM namespaces WHERE name = ?"), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("namespace %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up namespace %q: %w", name, err)
	}
	return id, nil
}

// rebind rewrites ? placeholders as $N for postgres.
func (s *NamespaceService) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
