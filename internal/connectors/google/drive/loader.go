package drive

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-rag/internal/connectors/google"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Loader defaults.
const (
	// DefaultMaxSize is the largest file downloaded or exported (10MB).
	DefaultMaxSize = 10 * 1024 * 1024
	// DefaultMaxRetries bounds retries after rate-limited responses.
	DefaultMaxRetries = 3
	pageSize          = 100
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader fetches files from Google Drive.
type Loader struct {
	svc        *drive.Service
	limiter    *google.RateLimiter
	maxSize    int64
	maxDepth   int
	maxRetries int
}

// Option configures a Loader.
type Option func(*Loader)

// WithRateLimiter replaces the default Drive rate limiter.
func WithRateLimiter(r *google.RateLimiter) Option {
	return func(l *Loader) {
		if r != nil {
			l.limiter = r
		}
	}
}

// WithMaxSize sets the largest file accepted, in bytes.
func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithMaxDepth limits folder recursion. Zero loads only the folder's own
// files; a negative depth is unlimited.
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		l.maxDepth = depth
	}
}

// WithMaxRetries sets how often a rate-limited call is retried.
func WithMaxRetries(n int) Option {
	return func(l *Loader) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// New creates a Drive loader over svc.
func New(svc *drive.Service, opts ...Option) *Loader {
	l := &Loader{
		svc:        svc,
		limiter:    google.NewRateLimiter(google.DefaultDriveRateLimit),
		maxSize:    DefaultMaxSize,
		maxDepth:   -1,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the single file addressed by link.
func (l *Loader) Load(ctx context.Context, link string) (*domain.RawDocument, error) {
	ref, err := ParseDriveID(link)
	if err != nil {
		return nil, err
	}
	if ref.Folder {
		return nil, fmt.Errorf("%w: %s is a folder link", domain.ErrInvalidInput, ref.ID)
	}

	file, err := l.getFile(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if file.MimeType == MimeTypeFolder {
		return nil, fmt.Errorf("%w: %s is a folder", domain.ErrInvalidInput, file.Name)
	}

	content, mimeType, err := l.fetchContent(ctx, file)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded Drive file %s (%s, %d bytes)", file.Name, mimeType, len(content))
	return toRawDocument(file, mimeType, content), nil
}

// VisitFunc receives each file loaded from a folder.
type VisitFunc func(ctx context.Context, doc *domain.RawDocument) error

// FolderStats summarises a folder load.
type FolderStats struct {
	// Processed counts every item listed, folders included.
	Processed int
	// Loaded counts files passed to the visitor without error.
	Loaded int
	// Skipped counts files that cannot be exported.
	Skipped int
	// Errors holds per-item failures. The walk continues past them.
	Errors []error
}

// Err joins the per-item failures, or returns nil.
func (s *FolderStats) Err() error {
	return errors.Join(s.Errors...)
}

// LoadFolder walks the folder addressed by link and passes every file to
// visit. Failures on individual files are collected in the stats; listing the
// top folder failing, or ctx ending, stops the walk with an error.
func (l *Loader) LoadFolder(ctx context.Context, link string, visit VisitFunc) (*FolderStats, error) {
	ref, err := ParseDriveID(link)
	if err != nil {
		return nil, err
	}

	if !ref.Folder {
		folder, err := l.getFile(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if folder.MimeType != MimeTypeFolder {
			return nil, fmt.Errorf("%w: %s is not a folder", domain.ErrInvalidInput, folder.Name)
		}
	}

	stats := &FolderStats{}
	if err := l.walk(ctx, ref.ID, 0, visit, stats); err != nil {
		return stats, err
	}
	logger.Info("Drive folder %s: %d loaded, %d skipped, %d failed",
		ref.ID, stats.Loaded, stats.Skipped, len(stats.Errors))
	return stats, nil
}

func (l *Loader) walk(ctx context.Context, folderID string, depth int, visit VisitFunc, stats *FolderStats) error {
	if l.maxDepth >= 0 && depth > l.maxDepth {
		return nil
	}

	files, err := l.listFolder(ctx, folderID)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Processed++

		if file.MimeType == MimeTypeFolder {
			if err := l.walk(ctx, file.Id, depth+1, visit, stats); err != nil {
				if ctx.Err() != nil {
					return err
				}
				stats.Errors = append(stats.Errors, fmt.Errorf("folder %s: %w", file.Name, err))
			}
			continue
		}

		content, mimeType, err := l.fetchContent(ctx, file)
		if errors.Is(err, domain.ErrUnsupportedMIMEType) {
			logger.Debug("Skipping %s: %v", file.Name, err)
			stats.Skipped++
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Errors = append(stats.Errors, err)
			continue
		}

		if err := visit(ctx, toRawDocument(file, mimeType, content)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", file.Name, err))
			continue
		}
		stats.Loaded++
	}
	return nil
}

func (l *Loader) getFile(ctx context.Context, id string) (*drive.File, error) {
	var file *drive.File
	err := l.call(ctx, func() error {
		var err error
		file, err = l.svc.Files.Get(id).
			Fields(fileFields).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return file, nil
}

func (l *Loader) listFolder(ctx context.Context, folderID string) ([]*drive.File, error) {
	var files []*drive.File
	pageToken := ""
	for {
		var resp *drive.FileList
		err := l.call(ctx, func() error {
			var err error
			resp, err = l.svc.Files.List().
				Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
				Fields("nextPageToken, files(" + fileFields + ")").
				PageSize(pageSize).
				PageToken(pageToken).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx).
				Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}

		files = append(files, resp.Files...)
		if resp.NextPageToken == "" {
			return files, nil
		}
		pageToken = resp.NextPageToken
	}
}

// call runs fn under the rate limiter, retrying rate-limited responses.
func (l *Loader) call(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if google.IsRateLimited(err) && attempt < l.maxRetries {
			wait := google.RetryAfter(err)
			logger.Warn("Drive rate limited, backing off %v", wait)
			l.limiter.RecordRateLimitError(wait)
			continue
		}
		return google.WrapError(err)
	}
}
