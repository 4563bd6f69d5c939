package connectors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-rag/internal/connectors/google/drive"
)

func TestResolveWebURL(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		metadata map[string]any
		want     string
	}{
		{
			name:     "drive web link",
			uri:      "https://drive.google.com/file/d/abc/view?usp=sharing",
			metadata: map[string]any{drive.MetadataWebLink: "https://docs.google.com/document/d/abc/edit"},
			want:     "https://docs.google.com/document/d/abc/edit",
		},
		{
			name:     "drive file id",
			uri:      "gdrive",
			metadata: map[string]any{drive.MetadataFileID: "abc"},
			want:     "https://drive.google.com/file/d/abc/view",
		},
		{
			name: "file uri",
			uri:  "file:///home/alice/My%20Notes.md",
			want: "/home/alice/My Notes.md",
		},
		{
			name:     "recorded path",
			uri:      "file:///tmp/x",
			metadata: map[string]any{"path": "/srv/docs/x"},
			want:     "/srv/docs/x",
		},
		{
			name: "other uri",
			uri:  "mcp:ingest_text/notes.txt",
			want: "mcp:ingest_text/notes.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveWebURL(tt.uri, tt.metadata))
		})
	}
}
