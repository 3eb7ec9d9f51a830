// Package postgres provides the PostgreSQL storage backend.
package postgres

// Schema contains the SQL statements to create the database schema for PostgreSQL.
// Embeddings are kept as float64 BYTEA so they round-trip exactly; the
// pgvector migration adds an indexed vector column alongside.
const Schema = `
-- Curation queue: items awaiting a publish decision
CREATE TABLE IF NOT EXISTS curation_items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    tags JSONB NOT NULL DEFAULT '[]',
    namespaces JSONB NOT NULL DEFAULT '[]',
    primary_namespace TEXT NOT NULL DEFAULT '',
    submitted_by TEXT NOT NULL DEFAULT '',

    -- Dedup fields
    content_hash TEXT NOT NULL,
    normalized_body TEXT NOT NULL DEFAULT '',
    embedding BYTEA,

    -- Decision fields
    quality_score DOUBLE PRECISION,
    auto_analysis JSONB,
    decision_reason TEXT NOT NULL DEFAULT '',

    -- Lifecycle
    status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    submitted_at TIMESTAMPTZ NOT NULL,
    reviewed_at TIMESTAMPTZ,
    reviewed_by TEXT NOT NULL DEFAULT '',
    status_changed_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ,
    published_document_id TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_curation_hash ON curation_items(content_hash, status);
CREATE INDEX IF NOT EXISTS idx_curation_status ON curation_items(status, status_changed_at);
CREATE INDEX IF NOT EXISTS idx_curation_namespace ON curation_items(primary_namespace, status);
CREATE INDEX IF NOT EXISTS idx_curation_namespaces ON curation_items USING GIN(namespaces);

-- Published documents: the knowledge store records created on approval
CREATE TABLE IF NOT EXISTS published_documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    namespace TEXT NOT NULL DEFAULT '',
    namespace_id TEXT NOT NULL DEFAULT '',
    tags JSONB NOT NULL DEFAULT '[]',
    source TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    embedding BYTEA,
    curation_item_id TEXT NOT NULL DEFAULT '',
    absorbed_from TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_hash ON published_documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_namespace ON published_documents(namespace);

-- Query frequency: one row per semantic cluster per namespace scope
CREATE TABLE IF NOT EXISTS query_frequency (
    id TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    normalized_text TEXT NOT NULL DEFAULT '',
    embedding BYTEA,
    hit_count INTEGER NOT NULL DEFAULT 1 CHECK (hit_count >= 1),
    namespace TEXT NOT NULL DEFAULT '',
    first_seen_at TIMESTAMPTZ NOT NULL,
    last_seen_at TIMESTAMPTZ NOT NULL,
    decayed_count DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_correlation_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_frequency_namespace ON query_frequency(namespace);
CREATE INDEX IF NOT EXISTS idx_frequency_last_seen ON query_frequency(last_seen_at);

CREATE TABLE IF NOT EXISTS namespaces (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// MigrationKnowledgeFTS creates the full-text index of published documents.
// A trigger keeps content_tsv in step with the text columns; title weighs
// more than tags, tags more than body. Safe to run multiple times.
const MigrationKnowledgeFTS = `
CREATE TABLE IF NOT EXISTS knowledge_index (
    doc_id TEXT PRIMARY KEY,
    namespace TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    content_tsv tsvector,
    indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_knowledge_tsv ON knowledge_index USING GIN(content_tsv);
CREATE INDEX IF NOT EXISTS idx_knowledge_namespace ON knowledge_index(namespace);

CREATE OR REPLACE FUNCTION knowledge_index_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.content_tsv :=
        setweight(to_tsvector('english', COALESCE(NEW.title, '')), 'A') ||
        setweight(to_tsvector('english', COALESCE(NEW.tags, '')), 'B') ||
        setweight(to_tsvector('english', COALESCE(NEW.body, '')), 'C');
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS knowledge_index_tsv_trigger ON knowledge_index;
CREATE TRIGGER knowledge_index_tsv_trigger
    BEFORE INSERT OR UPDATE ON knowledge_index
    FOR EACH ROW EXECUTE FUNCTION knowledge_index_tsv_update();
`

// MigrationPgvector adds vector columns used for nearest-neighbour search.
// Only applied when the vector extension is available. Safe to run multiple times.
const MigrationPgvector = `
ALTER TABLE curation_items ADD COLUMN IF NOT EXISTS embedding_vec vector;
ALTER TABLE published_documents ADD COLUMN IF NOT EXISTS embedding_vec vector;
ALTER TABLE query_frequency ADD COLUMN IF NOT EXISTS embedding_vec vector;
`
