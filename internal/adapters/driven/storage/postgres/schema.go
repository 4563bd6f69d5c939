package postgres

import "fmt"

// schemaStatements returns the DDL for a vector column of the given width.
// Every statement is idempotent.
func schemaStatements(dimensions, lists int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id              TEXT PRIMARY KEY,
			file_name       TEXT NOT NULL,
			mime_type       TEXT NOT NULL,
			uri             TEXT NOT NULL,
			owner_id        TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			active          BOOLEAN NOT NULL DEFAULT TRUE,
			metadata        JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_active ON documents (active)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_conversation ON documents (conversation_id, owner_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
			page        INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d),
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			UNIQUE (document_id, page)
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`, lists),
	}
}
