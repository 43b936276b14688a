package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXExtractor reads the paragraphs of word/document.xml.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
	Tabs []struct{} `xml:"tab"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for range r.Tabs {
			b.WriteByte('\t')
		}
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

func (d *DOCXExtractor) Extract(_ context.Context, content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open word/document.xml: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read word/document.xml: %w", err)
		}
		return parseDocumentXML(data)
	}
	return "", fmt.Errorf("docx archive has no word/document.xml")
}

// parseDocumentXML emits body paragraphs and table rows in document order.
// Paragraphs inside a table cell belong to their row.
func parseDocumentXML(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var lines []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse word/document.xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "p":
			var p docxParagraph
			if err := dec.DecodeElement(&p, &start); err != nil {
				return "", fmt.Errorf("parse paragraph: %w", err)
			}
			lines = append(lines, p.text())
		case "tbl":
			var tbl docxTable
			if err := dec.DecodeElement(&tbl, &start); err != nil {
				return "", fmt.Errorf("parse table: %w", err)
			}
			lines = append(lines, tbl.rows()...)
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func (t docxTable) rows() []string {
	rows := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			parts := make([]string, 0, len(cell.Paragraphs))
			for _, p := range cell.Paragraphs {
				parts = append(parts, p.text())
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return rows
}
