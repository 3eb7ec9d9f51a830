package sqlite

// Schema creates every table the sqlite backend uses. Timestamps are stored
// as fixed-width UTC text so lexical comparison matches chronological order.
const Schema = `
CREATE TABLE IF NOT EXISTS curation_items (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    namespaces TEXT NOT NULL DEFAULT '[]',
    primary_namespace TEXT NOT NULL DEFAULT '',
    submitted_by TEXT NOT NULL DEFAULT '',

    -- Dedup fields
    content_hash TEXT NOT NULL,
    normalized_body TEXT NOT NULL DEFAULT '',
    embedding BLOB,

    -- Decision fields
    quality_score REAL,
    auto_analysis TEXT,
    decision_reason TEXT NOT NULL DEFAULT '',

    -- Lifecycle
    status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    submitted_at TEXT NOT NULL,
    reviewed_at TEXT,
    reviewed_by TEXT NOT NULL DEFAULT '',
    status_changed_at TEXT NOT NULL,
    expires_at TEXT,
    published_document_id TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_curation_hash ON curation_items(content_hash, status);
CREATE INDEX IF NOT EXISTS idx_curation_status ON curation_items(status, status_changed_at);
CREATE INDEX IF NOT EXISTS idx_curation_namespace ON curation_items(primary_namespace, status);
CREATE INDEX IF NOT EXISTS idx_curation_expires ON curation_items(expires_at) WHERE expires_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS published_documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    namespace TEXT NOT NULL DEFAULT '',
    namespace_id TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    source TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    embedding BLOB,
    curation_item_id TEXT NOT NULL DEFAULT '',
    absorbed_from TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_hash ON published_documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_namespace ON published_documents(namespace);

CREATE TABLE IF NOT EXISTS query_frequency (
    id TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    normalized_text TEXT NOT NULL DEFAULT '',
    embedding BLOB,
    hit_count INTEGER NOT NULL DEFAULT 1 CHECK (hit_count >= 1),
    namespace TEXT NOT NULL DEFAULT '',
    first_seen_at TEXT NOT NULL,
    last_seen_at TEXT NOT NULL,
    decayed_count REAL NOT NULL DEFAULT 0,
    last_correlation_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_frequency_namespace ON query_frequency(namespace);
CREATE INDEX IF NOT EXISTS idx_frequency_last_seen ON query_frequency(last_seen_at);

CREATE TABLE IF NOT EXISTS namespaces (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

-- Full-text knowledge index for local runs
CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
    doc_id UNINDEXED,
    namespace UNINDEXED,
    source UNINDEXED,
    title,
    body,
    tags
);
`
