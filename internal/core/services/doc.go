// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IngestService turns raw bytes into a persisted document with embedded
// chunks. LifecycleService soft deletes, restores and removes documents.
// RetrievalService answers owner-scoped similarity queries and document reads.
//
// Services are pure Go with no CGO or external dependencies.
package services
