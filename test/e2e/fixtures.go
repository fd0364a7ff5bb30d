// Package e2e provides end-to-end tests; this file builds minimal binary files for supported types.
package e2e

import (
	"archive/zip"
	"bytes"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
// PDF is not generated here (no minimal PDF with extractable text); .odt and
// .rtf go through the same document reader as .docx.
var SupportedFileExtensions = []string{
	".txt", ".md", ".html", ".docx", ".xlsx",
}

// WriteMinimalFile returns the bytes of a minimal file of the given extension
// holding text. Plain types get the raw text.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".html", ".htm":
		return minimalHTML(text), nil
	case ".docx":
		return minimalDocx(text)
	case ".xlsx":
		return minimalXlsx(text)
	default:
		return []byte(text), nil
	}
}

func minimalHTML(text string) []byte {
	var b strings.Builder
	b.WriteString("<html><head><title>e2e</title><style>p{color:red}</style></head><body>")
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>" + html.EscapeString(para) + "</p>")
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func minimalDocx(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	var body strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		body.WriteString(`<w:p><w:r><w:t>` + html.EscapeString(para) + `</w:t></w:r></w:p>`)
	}
	if _, err := fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
