package domain

// RawDocument represents opaque bytes fetched by a loader.
// It is the loader's output before normalisation.
type RawDocument struct {
	// FileName is the display name reported by the source.
	FileName string

	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "text/html").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains loader-specific key-value pairs.
	Metadata map[string]any
}
