// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VectorStore: Document and chunk persistence with similarity search
//   - EmbeddingService: Generates vector embeddings (OpenAI, Ollama)
//   - Embedder: Order-preserving, retrying embedding client used by services
//   - Chunker: Splits text into overlapping spans
//   - NormaliserRegistry: Selects the text extractor for a MIME type
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - DocumentLoader: Fetches raw bytes from an upstream source (filesystem, Drive)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, loader, or normaliser package
package driven
