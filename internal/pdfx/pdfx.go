// Package pdfx converts uploaded PDF bytes into plain text for the
// extraction pipeline.
package pdfx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Converter turns PDF bytes into plain text. Implemented by Reader;
// tests substitute fakes.
type Converter interface {
	Text(data []byte) (string, error)
}

// Reader extracts text page by page, concatenated with blank-line
// separators and trimmed.
type Reader struct{}

var _ Converter = (*Reader)(nil)

// NewReader creates a PDF text converter.
func NewReader() *Reader {
	return &Reader{}
}

// Text extracts plain text from the document. The bytes are structurally
// validated first so malformed uploads fail with a clean error instead of
// a parser panic deep in extraction.
func (r *Reader) Text(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF data")
	}

	if _, err := pdfcpu.PageCount(bytes.NewReader(data), nil); err != nil {
		return "", fmt.Errorf("not a valid PDF: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	parts := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			parts = append(parts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			parts = append(parts, "")
			continue
		}
		parts = append(parts, text)
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}
