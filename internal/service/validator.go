package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/gabriel-vasile/mimetype"
)

// UploadCategory selects the rules a file is validated against.
type UploadCategory string

const (
	UploadDocument UploadCategory = "document"
	UploadImage    UploadCategory = "image"
)

const (
	MaxDocumentSize = 10 << 20
	MaxImageSize    = 2 << 20
)

type uploadRule struct {
	allowed []string
	maxSize int
}

var uploadRules = map[UploadCategory]uploadRule{
	UploadDocument: {allowed: []string{domain.MIMETypePDF, domain.MIMETypeDOCX}, maxSize: MaxDocumentSize},
	UploadImage:    {allowed: []string{domain.MIMETypeJPEG}, maxSize: MaxImageSize},
}

// ValidatedFile is what content sniffing found.
type ValidatedFile struct {
	MIMEType  string
	Extension string
	Size      int
}

// FileValidator checks uploads by sniffing their content, never trusting
// the client-supplied name or content type.
type FileValidator struct{}

func NewFileValidator() *FileValidator {
	return &FileValidator{}
}

func (v *FileValidator) Validate(content []byte, category UploadCategory) (*ValidatedFile, error) {
	rule, ok := uploadRules[category]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "unknown upload category: "+string(category))
	}

	detected := mimetype.Detect(content)
	matched := ""
	for _, allowed := range rule.allowed {
		if detected.Is(allowed) {
			matched = allowed
			break
		}
	}
	if matched == "" {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidFileType,
			fmt.Sprintf("Invalid file type %s. Allowed types: %s", detected.String(), strings.Join(rule.allowed, ", ")))
	}

	if len(content) > rule.maxSize {
		return nil, domain.NewDomainError(domain.ErrCodeFileTooLarge,
			fmt.Sprintf("File size exceeds maximum limit of %d MB", rule.maxSize>>20))
	}

	return &ValidatedFile{
		MIMEType:  matched,
		Extension: detected.Extension(),
		Size:      len(content),
	}, nil
}
