package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileKind identifies the source format of an uploaded document.
type FileKind string

const (
	FileKindPDF  FileKind = "pdf"
	FileKindDOCX FileKind = "docx"
)

// MIME types accepted for documents and profile images.
const (
	MIMETypePDF  = "application/pdf"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypeJPEG = "image/jpeg"
)

// FileKindFromMIME maps a detected MIME type to a FileKind.
func FileKindFromMIME(mimeType string) (FileKind, bool) {
	switch mimeType {
	case MIMETypePDF:
		return FileKindPDF, true
	case MIMETypeDOCX:
		return FileKindDOCX, true
	default:
		return "", false
	}
}

// FileKindFromName maps a file name extension to a FileKind.
func FileKindFromName(name string) (FileKind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FileKindPDF, true
	case ".docx":
		return FileKindDOCX, true
	default:
		return "", false
	}
}

// Extension returns the file extension including the leading dot.
func (k FileKind) Extension() string {
	return "." + string(k)
}

// Document is an uploaded file owned by exactly one user.
type Document struct {
	ID         string
	UserID     string
	Title      string
	FileURL    string
	StorageKey string
	FileType   FileKind
	UploadedAt time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.UserID == "" {
		return fmt.Errorf("document UserID is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("document Title is required")
	}
	if d.FileURL == "" {
		return fmt.Errorf("document FileURL is required")
	}
	return nil
}
