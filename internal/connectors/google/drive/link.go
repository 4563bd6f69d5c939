package drive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Ref is a parsed Drive link.
type Ref struct {
	ID string
	// Folder is set when the link has the /folders/ form.
	Folder bool
}

var bareID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseDriveID extracts the file or folder id from a Drive share link.
// Accepted forms, checked in order:
//
//	...?id=<id>&...
//	.../d/<id>/...
//	.../folders/<id>...
//	<id>
func ParseDriveID(link string) (Ref, error) {
	link = strings.TrimSpace(link)

	var ref Ref
	switch {
	case strings.Contains(link, "id="):
		ref.ID = cut(link[strings.LastIndex(link, "id=")+len("id="):])
	case strings.Contains(link, "/d/"):
		ref.ID = cut(link[strings.LastIndex(link, "/d/")+len("/d/"):])
	case strings.Contains(link, "/folders/"):
		ref.ID = cut(link[strings.LastIndex(link, "/folders/")+len("/folders/"):])
		ref.Folder = true
	default:
		ref.ID = link
	}

	if !bareID.MatchString(ref.ID) {
		return Ref{}, fmt.Errorf("%w: not a Google Drive link: %q", domain.ErrInvalidInput, link)
	}
	return ref, nil
}

// cut trims s at the first path, query or fragment delimiter.
func cut(s string) string {
	if i := strings.IndexAny(s, "/?&#"); i >= 0 {
		return s[:i]
	}
	return s
}
