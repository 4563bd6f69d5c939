package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestDocumentUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  DocumentUpdate
		wantErr bool
	}{
		{"empty update", DocumentUpdate{}, true},
		{"blank file name", DocumentUpdate{FileName: strPtr("   ")}, true},
		{"file name only", DocumentUpdate{FileName: strPtr("notes.txt")}, false},
		{"active only", DocumentUpdate{Active: boolPtr(false)}, false},
		{"both", DocumentUpdate{FileName: strPtr("a"), Active: boolPtr(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMetadata)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocumentUpdate_Apply(t *testing.T) {
	doc := Document{FileName: "old.txt", Active: true}

	DocumentUpdate{FileName: strPtr(" new.txt ")}.Apply(&doc)
	assert.Equal(t, "new.txt", doc.FileName)
	assert.True(t, doc.Active)

	DocumentUpdate{Active: boolPtr(false)}.Apply(&doc)
	assert.Equal(t, "new.txt", doc.FileName)
	assert.False(t, doc.Active)
}
