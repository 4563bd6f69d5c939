package filesystem

import (
	"net/url"
	"strings"
)

// ResolveWebURL converts a filesystem URI to a local path for opening.
// The path recorded at load time wins; file:// URIs are decoded and bare
// paths pass through unchanged.
func ResolveWebURL(uri string, metadata map[string]any) string {
	if p, ok := metadata["path"].(string); ok && p != "" {
		return p
	}
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	if u, err := url.Parse(uri); err == nil {
		return u.Path
	}
	return strings.TrimPrefix(uri, "file://")
}
