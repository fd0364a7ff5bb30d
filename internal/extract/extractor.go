// Package extract reads regulatory documents (PDF, DOCX, XLSX, HTML, ODT,
// RTF and plain text) into raw documents ready for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"
)

// Page is the text of one page. Number is 1-based for paged formats (PDF)
// and 0 for formats without pages.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text, one Page per PDF
// page and a single Page for every other format.
func (e *Extractor) Extract(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".odt" || ext == ".rtf" {
		text, err := cat.File(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", ext, err)
		}
		return single(strings.TrimSpace(text), nil)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are
// read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Page, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return single(extractDOCX(content))
	case ".xlsx":
		return single(extractXLSX(content))
	case ".html", ".htm":
		return single(extractHTML(content))
	case ".odt", ".rtf":
		return nil, fmt.Errorf("extract %s: only supported from files", ext)
	default:
		return []Page{{Text: strings.ToValidUTF8(string(content), "\ufffd")}}, nil
	}
}

func single(text string, err error) ([]Page, error) {
	if err != nil {
		return nil, err
	}
	return []Page{{Text: text}}, nil
}
