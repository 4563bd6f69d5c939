package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// timeLayout is fixed width so text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const documentColumns = `d.id, d.file_name, d.mime_type, d.uri, d.owner_id, d.conversation_id,
	d.active, d.metadata, d.created_at, d.updated_at`

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-rag/data/vectors.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-rag", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	if err := registerVectorFunctions(); err != nil {
		return nil, err
	}

	// Pragmas in the DSN apply to every pooled connection. Write transactions
	// take the lock up front so concurrent writers wait on busy_timeout
	// instead of failing on lock upgrade.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageError("pinging database", err)
	}
	return nil
}

// migrate runs all pending migrations. Each migration and its version row
// are applied in one transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		version, formatTime(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Writes ====================

// InsertDocumentWithChunks stores a document and its chunks in one transaction.
func (s *Store) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidMetadata)
	}
	for i := range chunks {
		if chunks[i].DocumentID != "" && chunks[i].DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %d belongs to document %q", domain.ErrInvalidMetadata, i, chunks[i].DocumentID)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, file_name, mime_type, uri, owner_id, conversation_id,
			active, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.FileName, doc.MIMEType, doc.URI, doc.OwnerID, doc.ConversationID,
		boolToInt(doc.Active), metadataJSON, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return writeError("inserting document", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, page, content, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageError("preparing chunk insert", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.DocumentID = doc.ID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = doc.CreatedAt
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}

		var embedding any
		if c.Embedding != nil {
			embedding = vecmath.Encode(c.Embedding)
		}

		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Page, c.Content, embedding,
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
			return writeError(fmt.Sprintf("inserting chunk for page %d", c.Page), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("committing document", err)
	}
	return nil
}

// UpdateDocument applies update to the owner's document.
func (s *Store) UpdateDocument(
	ctx context.Context, id, ownerID string, update domain.DocumentUpdate,
) (*domain.Document, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents d WHERE d.id = ? AND d.owner_id = ?`, id, ownerID)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	update.Apply(doc)
	doc.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET file_name = ?, active = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, doc.FileName, boolToInt(doc.Active), formatTime(doc.UpdatedAt), id, ownerID); err != nil {
		return nil, storageError("updating document", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("committing update", err)
	}
	return doc, nil
}

// DeleteDocument soft or hard deletes the owner's document.
// Chunks follow a hard delete through the foreign key cascade.
func (s *Store) DeleteDocument(ctx context.Context, id, ownerID string, hard bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if hard {
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM documents WHERE id = ? AND owner_id = ?", id, ownerID)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE documents SET active = 0, updated_at = ? WHERE id = ? AND owner_id = ?",
			formatTime(time.Now()), id, ownerID)
	}
	if err != nil {
		return storageError("deleting document", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("deleting document", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteConversation deletes every document of the owner in the conversation.
// Ownership is part of the predicate, so other owners' rows are never touched.
func (s *Store) DeleteConversation(ctx context.Context, conversationID, ownerID string, hard bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var res sql.Result
	var err error
	if hard {
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM documents WHERE conversation_id = ? AND owner_id = ?", conversationID, ownerID)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE documents SET active = 0, updated_at = ? WHERE conversation_id = ? AND owner_id = ?",
			formatTime(time.Now()), conversationID, ownerID)
	}
	if err != nil {
		return 0, storageError("deleting conversation", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("deleting conversation", err)
	}
	return int(n), nil
}

// ==================== Reads ====================

// GetDocument retrieves the owner's document by ID.
func (s *Store) GetDocument(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents d WHERE d.id = ? AND d.owner_id = ?`, id, ownerID)
	return scanDocument(row)
}

// ListDocuments returns documents matching filter, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	var where []string
	var args []any

	if filter.OwnerID != "" {
		where = append(where, "d.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ConversationID != "" {
		where = append(where, "d.conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.MIMEType != "" {
		where = append(where, "d.mime_type = ?")
		args = append(args, filter.MIMEType)
	}
	if filter.ActiveOnly {
		where = append(where, "d.active = 1")
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "d.file_name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q)+"%")
	}

	query := "SELECT " + documentColumns + " FROM documents d"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.updated_at DESC, d.id ASC"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	case filter.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("listing documents", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("listing documents", err)
	}
	return docs, nil
}

// ListChunks returns the chunks of the owner's document ordered by page.
func (s *Store) ListChunks(ctx context.Context, documentID, ownerID string) ([]domain.Chunk, error) {
	if _, err := s.GetDocument(ctx, documentID, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, page, content, embedding, created_at, updated_at
		FROM chunks WHERE document_id = ?
		ORDER BY page ASC
	`, documentID)
	if err != nil {
		return nil, storageError("listing chunks", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Page, &c.Content, &blob,
			&createdAt, &updatedAt); err != nil {
			return nil, storageError("scanning chunk", err)
		}
		if c.Embedding, err = vecmath.Decode(blob); err != nil {
			return nil, storageError("decoding embedding", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("listing chunks", err)
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *Store) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&n)
	if err != nil {
		return 0, storageError("counting chunks", err)
	}
	return n, nil
}

// ==================== Similarity Search ====================

// KNNSearch ranks the owner's chunks by cosine similarity to query with an
// exact scan. Ties are broken by chunk ID so results are deterministic.
func (s *Store) KNNSearch(
	ctx context.Context, query []float32, k int, filter domain.SearchFilter,
) ([]domain.RetrievalHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, nil
	}

	where := []string{"d.owner_id = ?", "c.embedding IS NOT NULL"}
	args := []any{vecmath.Encode(query), filter.OwnerID}
	if filter.ActiveOnly {
		where = append(where, "d.active = 1")
	}
	if filter.MIMEType != "" {
		where = append(where, "d.mime_type = ?")
		args = append(args, filter.MIMEType)
	}
	if filter.ConversationID != "" {
		where = append(where, "d.conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT c.id AS chunk_id, c.page, c.content,
				vec_cosine(c.embedding, ?) AS score,
				`+documentColumns+`
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE `+strings.Join(where, " AND ")+`
		)
		WHERE score IS NOT NULL
		ORDER BY score DESC, chunk_id ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, storageError("searching chunks", err)
	}
	defer rows.Close()

	hits := make([]domain.RetrievalHit, 0, k)
	for rows.Next() {
		var hit domain.RetrievalHit
		var doc documentRow
		dest := append([]any{&hit.ChunkID, &hit.Page, &hit.Content, &hit.Score}, doc.fields()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, storageError("scanning search hit", err)
		}
		d, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		hit.Document = *d
		hit.DocumentID = d.ID
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("searching chunks", err)
	}
	return hits, nil
}

// ==================== Helper Functions ====================

type rowScanner interface {
	Scan(dest ...any) error
}

// documentRow holds a documents row before conversion.
type documentRow struct {
	doc       domain.Document
	active    int
	metadata  string
	createdAt string
	updatedAt string
}

func (r *documentRow) fields() []any {
	return []any{&r.doc.ID, &r.doc.FileName, &r.doc.MIMEType, &r.doc.URI, &r.doc.OwnerID,
		&r.doc.ConversationID, &r.active, &r.metadata, &r.createdAt, &r.updatedAt}
}

func (r *documentRow) toDomain() (*domain.Document, error) {
	doc := r.doc
	doc.Active = r.active != 0

	if r.metadata != "" {
		if err := json.Unmarshal([]byte(r.metadata), &doc.Metadata); err != nil {
			return nil, storageError("unmarshalling metadata", err)
		}
		if len(doc.Metadata) == 0 {
			doc.Metadata = nil
		}
	}

	var err error
	if doc.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var r documentRow
	if err := row.Scan(r.fields()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageError("scanning document", err)
	}
	return r.toDomain()
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: metadata is not serialisable: %w", domain.ErrInvalidMetadata, err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, storageError("parsing timestamp", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// writeError maps uniqueness violations to ErrDuplicateChunk.
func writeError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateChunk)
	}
	return storageError(op, err)
}

// storageError wraps a driver failure as ErrStorageUnavailable.
// Context errors pass through so callers can tell cancellation apart.
func storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
