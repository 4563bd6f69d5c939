package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// DefaultMaxSize is the largest file Load reads (32MB).
const DefaultMaxSize = 32 * 1024 * 1024

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader reads local files for ingestion.
type Loader struct {
	maxSize int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxSize sets the largest file Load accepts, in bytes.
func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// New creates a filesystem loader.
func New(opts ...Option) *Loader {
	l := &Loader{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file at ref, which is a path or a file:// URI.
func (l *Loader) Load(ctx context.Context, ref string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := localPath(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", domain.ErrInvalidInput, path, info.Size(), l.maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return &domain.RawDocument{
		FileName: filepath.Base(path),
		URI:      (&url.URL{Scheme: "file", Path: path}).String(),
		MIMEType: DetectMIMEType(path, content),
		Content:  content,
		Metadata: map[string]any{
			"path":          path,
			"size":          info.Size(),
			"modified_time": info.ModTime().UTC().Format(time.RFC3339),
		},
	}, nil
}

// localPath turns a path or file:// URI into an absolute path.
func localPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		ref = u.Path
	}
	return filepath.Abs(ref)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
