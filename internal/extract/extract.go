// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"context"

	"github.com/cloo-solutions/docchat/internal/domain"
)

// Extractor dispatches on the document kind.
type Extractor struct {
	pdf  *PDFExtractor
	docx *DOCXExtractor
}

func New(pdf *PDFExtractor) *Extractor {
	return &Extractor{pdf: pdf, docx: NewDOCXExtractor()}
}

// Extract returns the text of content. Kinds other than pdf and docx are
// rejected with UNSUPPORTED_FORMAT.
func (e *Extractor) Extract(ctx context.Context, kind domain.FileKind, content []byte) (string, error) {
	switch kind {
	case domain.FileKindPDF:
		return e.pdf.Extract(ctx, content)
	case domain.FileKindDOCX:
		return e.docx.Extract(ctx, content)
	default:
		return "", domain.ErrUnsupportedFormat
	}
}
