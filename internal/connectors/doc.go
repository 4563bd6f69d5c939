// Package connectors holds the document loaders that feed the ingestion
// pipeline. Each subpackage fetches raw bytes from one kind of source; the
// core never fetches files itself.
package connectors
