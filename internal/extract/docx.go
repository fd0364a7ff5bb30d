package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	defaultDocxBody  = "word/document.xml"
	docxMainMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	runText      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	overrideElem = regexp.MustCompile(`<Override\s[^>]*>`)
	attrPartName = regexp.MustCompile(`PartName="([^"]+)"`)
)

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

// docxBodyPath resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxBodyPath(zr *zip.Reader) string {
	types, err := readZipEntry(zr, "[Content_Types].xml")
	if err != nil {
		return defaultDocxBody
	}
	for _, elem := range overrideElem.FindAll(types, -1) {
		if !bytes.Contains(elem, []byte(`ContentType="`+docxMainMIMEType+`"`)) {
			continue
		}
		if m := attrPartName.FindSubmatch(elem); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return defaultDocxBody
}

// extractDOCX returns the text of a .docx package. Runs of a paragraph are
// concatenated and paragraphs are separated by a blank line.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	body, err := readZipEntry(zr, docxBodyPath(zr))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var paragraphs []string
	for _, para := range strings.Split(string(body), "</w:p>") {
		var b strings.Builder
		for _, m := range runText.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
