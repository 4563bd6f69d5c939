package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	googleAppsPrefix     = "application/vnd.google-apps."
)

// exportFormats maps Workspace types to the format they are exported as.
var exportFormats = map[string]string{
	MimeTypeGoogleDoc:    "text/html",
	MimeTypeGoogleSheet:  "text/csv",
	MimeTypeGoogleSlides: "text/plain",
}

// Metadata keys set on loaded documents.
const (
	MetadataFileID       = "drive_id"
	MetadataWebLink      = "web_link"
	MetadataDriveMIME    = "drive_mime_type"
	MetadataModifiedTime = "modified_time"
)

// fileFields are requested for every file.
const fileFields = "id, name, mimeType, size, webViewLink, modifiedTime, trashed"

// toRawDocument wraps downloaded content with the file's metadata.
func toRawDocument(file *drive.File, mimeType string, content []byte) *domain.RawDocument {
	uri := file.WebViewLink
	if uri == "" {
		uri = ViewURL(file.Id)
	}

	md := map[string]any{
		MetadataFileID:    file.Id,
		MetadataDriveMIME: file.MimeType,
	}
	if file.WebViewLink != "" {
		md[MetadataWebLink] = file.WebViewLink
	}
	if t, err := time.Parse(time.RFC3339, file.ModifiedTime); err == nil {
		md[MetadataModifiedTime] = t.UTC().Format(time.RFC3339)
	}

	return &domain.RawDocument{
		FileName: file.Name,
		URI:      uri,
		MIMEType: mimeType,
		Content:  content,
		Metadata: md,
	}
}

// exportFormat returns the export MIME type for Workspace files. workspace is
// false for regular files, which are downloaded unchanged.
func exportFormat(mimeType string) (format string, workspace bool, err error) {
	if f, ok := exportFormats[mimeType]; ok {
		return f, true, nil
	}
	if strings.HasPrefix(mimeType, googleAppsPrefix) {
		return "", true, fmt.Errorf("%w: %s cannot be exported", domain.ErrUnsupportedMIMEType, mimeType)
	}
	return "", false, nil
}

// readLimited reads at most limit bytes and fails if body is larger.
func readLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, limit)
	}
	return data, nil
}

// fetchContent downloads or exports a file.
func (l *Loader) fetchContent(ctx context.Context, file *drive.File) ([]byte, string, error) {
	format, workspace, err := exportFormat(file.MimeType)
	if err != nil {
		return nil, "", err
	}

	if !workspace && file.Size > l.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes, limit is %d", domain.ErrInvalidInput, file.Name, file.Size, l.maxSize)
	}

	var content []byte
	err = l.call(ctx, func() error {
		var resp *http.Response
		var err error
		if workspace {
			resp, err = l.svc.Files.Export(file.Id, format).Context(ctx).Download()
		} else {
			resp, err = l.svc.Files.Get(file.Id).SupportsAllDrives(true).Context(ctx).Download()
		}
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		content, err = readLimited(resp.Body, l.maxSize)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", file.Name, err)
	}

	if !workspace {
		format = file.MimeType
		// Uploads of unknown type are stored as octet-stream.
		if format == "" || format == "application/octet-stream" {
			format = filesystem.DetectMIMEType(file.Name, content)
		}
	}
	return content, format, nil
}
