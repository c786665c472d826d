// Package document extracts searchable text from uploaded PDFs.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/kyuho/barun/internal/storage"
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF file header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// ExtractPages returns the plain text of every page, in page order. Pages
// whose text cannot be decoded are kept as empty strings so page numbers in
// search results still line up with the source document.
func ExtractPages(r io.ReaderAt, size int64) ([]string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalizeText(text))
	}
	return pages, nil
}

// ExtractBytes extracts pages from an in-memory PDF (e.g. a multipart upload).
func ExtractBytes(data []byte) ([]string, error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("not a PDF file")
	}
	return ExtractPages(bytes.NewReader(data), int64(len(data)))
}

// ExtractText returns the concatenated text of a local file: PDF pages joined
// with blank lines, or the raw content for plain-text files. Used by the CLI
// to feed a file into a check.
func ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	if !IsPDF(data) {
		return string(data), nil
	}
	pages, err := ExtractBytes(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// BuildPages wraps extracted page texts into storage rows for a document.
func BuildPages(documentID string, texts []string) []storage.Page {
	pages := make([]storage.Page, len(texts))
	for i, text := range texts {
		pages[i] = storage.Page{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			PageNumber: i + 1,
			Content:    text,
		}
	}
	return pages
}

// normalizeText collapses runs of spaces and trims each line. PDF text
// extraction tends to leave positioning artifacts behind.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
