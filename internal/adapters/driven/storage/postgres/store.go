// Package postgres provides a PostgreSQL implementation of driven.VectorStore
// backed by the pgvector extension.
//
// Chunk embeddings live in a vector(N) column with an ivfflat index using
// cosine distance. Search results are approximate; the ivfflat.probes setting
// trades recall for speed and is applied to every search transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

const (
	// DefaultLists is the ivfflat lists parameter used when none is configured.
	DefaultLists = 100
	// DefaultProbes is the number of ivfflat lists scanned per query.
	DefaultProbes = 10

	uniqueViolation = "23505"
)

const documentColumns = `d.id, d.file_name, d.mime_type, d.uri, d.owner_id, d.conversation_id,
	d.active, d.metadata, d.created_at, d.updated_at`

// Config holds connection and index settings.
type Config struct {
	// DSN is a pgx connection string.
	DSN string
	// Dimensions is the embedding width of the vector column.
	Dimensions int
	Lists      int
	Probes     int
	// MaxConns caps the pool size; zero keeps the pgxpool default.
	MaxConns int32
}

// Store is a pgvector-backed vector store.
type Store struct {
	pool   *pgxpool.Pool
	dims   int
	probes int
}

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// New connects to PostgreSQL, enables the vector extension and creates the
// schema if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("postgres: invalid embedding dimensions %d", cfg.Dimensions)
	}
	if cfg.Lists <= 0 {
		cfg.Lists = DefaultLists
	}
	if cfg.Probes <= 0 {
		cfg.Probes = DefaultProbes
	}

	// The extension must exist before pooled connections register its types.
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, storageError("connecting", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, storageError("creating vector extension", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, c)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storageError("creating pool", err)
	}

	for _, stmt := range schemaStatements(cfg.Dimensions, cfg.Lists) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, storageError("creating schema", err)
		}
	}

	return &Store{pool: pool, dims: cfg.Dimensions, probes: cfg.Probes}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageError("pinging database", err)
	}
	return nil
}

// InsertDocumentWithChunks stores a document and its chunks in one transaction.
func (s *Store) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidMetadata)
	}
	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != "" && c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %d belongs to document %q", domain.ErrInvalidMetadata, i, c.DocumentID)
		}
		if c.Embedding != nil && len(c.Embedding) != s.dims {
			return fmt.Errorf("%w: page %d has %d dimensions, store expects %d",
				domain.ErrInvalidInput, c.Page, len(c.Embedding), s.dims)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	metadata := "{}"
	if len(doc.Metadata) > 0 {
		b, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("%w: metadata is not serialisable: %w", domain.ErrInvalidMetadata, err)
		}
		metadata = string(b)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError("beginning transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, file_name, mime_type, uri, owner_id, conversation_id,
			active, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
	`, doc.ID, doc.FileName, doc.MIMEType, doc.URI, doc.OwnerID, doc.ConversationID,
		doc.Active, metadata, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return writeError("inserting document", err)
	}

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
			embedding = pgvector.NewVector(c.Embedding)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, page, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.DocumentID, c.Page, c.Content, embedding, c.CreatedAt, c.UpdatedAt); err != nil {
			return writeError(fmt.Sprintf("inserting chunk for page %d", c.Page), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("committing document", err)
	}
	return nil
}

// GetDocument retrieves the owner's document by ID.
func (s *Store) GetDocument(ctx context.Context, id, ownerID string) (*domain.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+`
		FROM documents d WHERE d.id = $1 AND d.owner_id = $2`, id, ownerID)
	return scanDocument(row)
}

// ListDocuments returns documents matching filter, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	q := newQuery()
	var where []string

	if filter.OwnerID != "" {
		where = append(where, "d.owner_id = "+q.arg(filter.OwnerID))
	}
	if filter.ConversationID != "" {
		where = append(where, "d.conversation_id = "+q.arg(filter.ConversationID))
	}
	if filter.MIMEType != "" {
		where = append(where, "d.mime_type = "+q.arg(filter.MIMEType))
	}
	if filter.ActiveOnly {
		where = append(where, "d.active")
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		where = append(where, "d.file_name ILIKE "+q.arg("%"+escapeLike(text)+"%"))
	}

	sql := "SELECT " + documentColumns + " FROM documents d"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY d.updated_at DESC, d.id ASC"
	if filter.Limit > 0 {
		sql += " LIMIT " + q.arg(filter.Limit)
	}
	if filter.Offset > 0 {
		sql += " OFFSET " + q.arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, sql, q.args...)
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

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, content, embedding, created_at, updated_at
		FROM chunks WHERE document_id = $1
		ORDER BY page ASC
	`, documentID)
	if err != nil {
		return nil, storageError("listing chunks", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var embedding *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Page, &c.Content, &embedding,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageError("scanning chunk", err)
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
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
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks WHERE document_id = $1", documentID).Scan(&n)
	if err != nil {
		return 0, storageError("counting chunks", err)
	}
	return n, nil
}

// UpdateDocument applies update to the owner's document.
func (s *Store) UpdateDocument(
	ctx context.Context, id, ownerID string, update domain.DocumentUpdate,
) (*domain.Document, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageError("beginning transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx, `SELECT `+documentColumns+`
		FROM documents d WHERE d.id = $1 AND d.owner_id = $2 FOR UPDATE`, id, ownerID)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	update.Apply(doc)
	doc.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE documents SET file_name = $1, active = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5
	`, doc.FileName, doc.Active, doc.UpdatedAt, id, ownerID); err != nil {
		return nil, storageError("updating document", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("committing update", err)
	}
	return doc, nil
}

// DeleteDocument soft or hard deletes the owner's document.
func (s *Store) DeleteDocument(ctx context.Context, id, ownerID string, hard bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var tag pgconn.CommandTag
	var err error
	if hard {
		tag, err = s.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND owner_id = $2", id, ownerID)
	} else {
		tag, err = s.pool.Exec(ctx,
			"UPDATE documents SET active = FALSE, updated_at = now() WHERE id = $1 AND owner_id = $2",
			id, ownerID)
	}
	if err != nil {
		return storageError("deleting document", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteConversation deletes every document of the owner in the conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID, ownerID string, hard bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var tag pgconn.CommandTag
	var err error
	if hard {
		tag, err = s.pool.Exec(ctx,
			"DELETE FROM documents WHERE conversation_id = $1 AND owner_id = $2", conversationID, ownerID)
	} else {
		tag, err = s.pool.Exec(ctx,
			"UPDATE documents SET active = FALSE, updated_at = now() WHERE conversation_id = $1 AND owner_id = $2",
			conversationID, ownerID)
	}
	if err != nil {
		return 0, storageError("deleting conversation", err)
	}
	return int(tag.RowsAffected()), nil
}

// KNNSearch returns the owner's nearest chunks by cosine distance.
// Zero vectors have no defined distance and are skipped.
func (s *Store) KNNSearch(
	ctx context.Context, query []float32, k int, filter domain.SearchFilter,
) ([]domain.RetrievalHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", domain.ErrInvalidInput)
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrInvalidInput, len(query), s.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	sql, args := knnQuery(query, k, filter)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, storageError("beginning search", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction

	if _, err := tx.Exec(ctx, "SET LOCAL ivfflat.probes = "+strconv.Itoa(s.probes)); err != nil {
		return nil, storageError("setting probes", err)
	}

	rows, err := tx.Query(ctx, sql, args...)
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
		hit.Document = doc.toDomain()
		hit.DocumentID = hit.Document.ID
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("searching chunks", err)
	}
	return hits, nil
}

// knnQuery builds the search statement. The inner query orders by distance
// alone so the planner can walk the ivfflat index; ties and unscorable rows
// are handled on the k candidates it returns.
func knnQuery(query []float32, k int, filter domain.SearchFilter) (string, []any) {
	q := newQuery()
	vec := q.arg(pgvector.NewVector(query))
	where := []string{
		"d.owner_id = " + q.arg(filter.OwnerID),
		"c.embedding IS NOT NULL",
	}
	if filter.ActiveOnly {
		where = append(where, "d.active")
	}
	if filter.MIMEType != "" {
		where = append(where, "d.mime_type = "+q.arg(filter.MIMEType))
	}
	if filter.ConversationID != "" {
		where = append(where, "d.conversation_id = "+q.arg(filter.ConversationID))
	}

	inner := `SELECT c.id AS chunk_id, c.page, c.content, c.embedding <=> ` + vec + ` AS distance, ` + documentColumns + `
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY c.embedding <=> ` + vec + `
		LIMIT ` + q.arg(k)

	sql := `SELECT chunk_id, page, content, 1 - distance AS score,
		id, file_name, mime_type, uri, owner_id, conversation_id, active, metadata, created_at, updated_at
		FROM (` + inner + `) nearest
		WHERE distance <> 'NaN'::float8
		ORDER BY score DESC, chunk_id ASC`
	return sql, q.args
}

// ==================== Helpers ====================

// query numbers positional parameters as they are added.
type query struct {
	args []any
}

func newQuery() *query { return &query{} }

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

type documentRow struct {
	doc      domain.Document
	metadata map[string]any
}

func (r *documentRow) fields() []any {
	return []any{&r.doc.ID, &r.doc.FileName, &r.doc.MIMEType, &r.doc.URI, &r.doc.OwnerID,
		&r.doc.ConversationID, &r.doc.Active, &r.metadata, &r.doc.CreatedAt, &r.doc.UpdatedAt}
}

func (r *documentRow) toDomain() domain.Document {
	doc := r.doc
	if len(r.metadata) > 0 {
		doc.Metadata = r.metadata
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var r documentRow
	if err := row.Scan(r.fields()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageError("scanning document", err)
	}
	doc := r.toDomain()
	return &doc, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// writeError maps unique violations to ErrDuplicateChunk.
func writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicateChunk)
	}
	return storageError(op, err)
}

// storageError wraps a driver failure as ErrStorageUnavailable.
// Context errors pass through unchanged.
func storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
