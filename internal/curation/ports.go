package curation

import (
	"context"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/llm"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/storage"
)

// KnowledgeIndexer is the external index published documents are written to.
type KnowledgeIndexer interface {
	IndexDocument(ctx context.Context, docID, content string, meta storage.IndexMetadata) error

	// RemoveDocument deletes every entry for docID. Missing entries are not an error.
	RemoveDocument(ctx context.Context, docID string) error
}

// NamespaceRegistry provisions target namespaces.
type NamespaceRegistry interface {
	CreateNamespaceIfMissing(ctx context.Context, name string) (string, error)
}

// CuratorProfile selects the prompt and model used for curator analysis.
type CuratorProfile struct {
	Name         string
	Instructions string

	// Generator overrides the store's default curator model when set.
	Generator llm.TextGenerator
}

// CuratorResolver looks up the active curator profile.
type CuratorResolver interface {
	ResolveCurator(ctx context.Context) (CuratorProfile, error)
}
