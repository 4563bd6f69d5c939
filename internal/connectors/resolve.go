package connectors

import (
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/connectors/google/drive"
)

// ResolveWebURL returns a link a user can open for a stored document.
// Drive documents resolve to their browser link, local files to their path.
// Other URIs are returned unchanged.
func ResolveWebURL(uri string, metadata map[string]any) string {
	if link := drive.ResolveWebURL(uri, metadata); link != "" {
		return link
	}
	if strings.HasPrefix(uri, "file://") || strings.HasPrefix(uri, "/") {
		return filesystem.ResolveWebURL(uri, metadata)
	}
	return uri
}
