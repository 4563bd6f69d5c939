package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNormalise_Paragraphs(t *testing.T) {
	content := buildDocx(t, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	got, err := New().Normalise(context.Background(), &domain.RawDocument{MIMEType: MIMEType, Content: content})
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond paragraph", got)
}

func TestNormalise_NotZip(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawDocument{Content: []byte("plain")})
	assert.ErrorIs(t, err, domain.ErrChunking)
}

func TestNormalise_MissingDocumentXML(t *testing.T) {
	content := buildDocx(t, map[string]string{"docProps/core.xml": "<x/>"})
	_, err := New().Normalise(context.Background(), &domain.RawDocument{Content: content})
	assert.ErrorIs(t, err, domain.ErrChunking)
}
