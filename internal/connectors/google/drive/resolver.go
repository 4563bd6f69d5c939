package drive

import "strings"

// ResolveWebURL returns a browser link for a document loaded from Drive.
// The recorded web link wins, then the recorded file id; a Drive URI is
// returned as is. Anything else resolves to "".
func ResolveWebURL(uri string, metadata map[string]any) string {
	if link, ok := metadata[MetadataWebLink].(string); ok && link != "" {
		return link
	}
	if id, ok := metadata[MetadataFileID].(string); ok && id != "" {
		return ViewURL(id)
	}
	if IsDriveURL(uri) {
		return uri
	}
	return ""
}

// ViewURL is the browser link for a file id.
func ViewURL(id string) string {
	return "https://drive.google.com/file/d/" + id + "/view"
}

// IsDriveURL reports whether uri points at drive.google.com or docs.google.com.
func IsDriveURL(uri string) bool {
	return strings.HasPrefix(uri, "https://drive.google.com/") ||
		strings.HasPrefix(uri, "https://docs.google.com/")
}
