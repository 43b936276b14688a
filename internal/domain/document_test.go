package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileKindFromMIME(t *testing.T) {
	kind, ok := FileKindFromMIME(MIMETypePDF)
	assert.True(t, ok)
	assert.Equal(t, FileKindPDF, kind)

	kind, ok = FileKindFromMIME(MIMETypeDOCX)
	assert.True(t, ok)
	assert.Equal(t, FileKindDOCX, kind)

	_, ok = FileKindFromMIME("text/plain")
	assert.False(t, ok)
}

func TestFileKindFromName(t *testing.T) {
	kind, ok := FileKindFromName("Report.PDF")
	assert.True(t, ok)
	assert.Equal(t, FileKindPDF, kind)
	assert.Equal(t, ".pdf", kind.Extension())

	_, ok = FileKindFromName("notes.txt")
	assert.False(t, ok)
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid document",
			doc:     &Document{ID: "d1", UserID: "u1", Title: "Report", FileURL: "http://x/y", UploadedAt: now},
			wantErr: false,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name:    "blank title",
			doc:     &Document{ID: "d1", UserID: "u1", Title: "   ", FileURL: "http://x/y"},
			wantErr: true,
			errMsg:  "Title",
		},
		{
			name:    "missing owner",
			doc:     &Document{ID: "d1", Title: "Report", FileURL: "http://x/y"},
			wantErr: true,
			errMsg:  "UserID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
