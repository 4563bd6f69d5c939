// Package sqlite provides the SQLite implementation of driven.VectorStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files;
// applied versions are recorded in schema_migrations.
//
// Chunks reference documents with ON DELETE CASCADE and (document_id, page) is
// unique, so both invariants hold at the storage layer. Foreign keys are enabled
// on every pooled connection through the DSN.
//
// # Similarity Search
//
// Embeddings are stored as little-endian float32 BLOBs. Nearest-neighbour search
// is an exact scan that ranks chunks with the vec_cosine SQL function, registered
// with the driver before the database is opened.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rag/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. Each call acquires its own connection or
// transaction from the pool; SQLite in WAL mode lets searches proceed while a
// write transaction is open, and readers only see committed rows.
package sqlite
