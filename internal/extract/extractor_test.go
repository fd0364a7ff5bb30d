package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func extractText(t *testing.T, content []byte, ext string) string {
	t.Helper()
	pages, err := NewExtractor().ExtractBytes(content, ext)
	if err != nil {
		t.Fatalf("ExtractBytes(%s): %v", ext, err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 0 {
		t.Errorf("unpaged format should have page number 0, got %d", pages[0].Number)
	}
	return pages[0].Text
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ext     string
		want    string
	}{
		{"txt", "Hello world\nLine 2", ".txt", "Hello world\nLine 2"},
		{"utf8", "caf\xc3\xa9", ".md", "café"},
		{"invalid utf8", "hello\x80world", ".txt", "hello�world"},
		{"unknown extension", "raw content", ".xyz", "raw content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(t, []byte(tt.content), tt.ext); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Article")
	f.SetCellValue("Sheet1", "A2", "21")
	f.SetCellValue("Sheet1", "B2", "Risk management")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if got := extractText(t, buf.Bytes(), ".xlsx"); got != "Article\n21\tRisk management" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excelSheetsAreSections(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Article 21")
	f.SetCellValue("Sheet1", "A3", "Supply chain security")
	if _, err := f.NewSheet("Annex"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetCellValue("Annex", "A1", "Energy")
	f.SetCellValue("Annex", "B1", "Transport")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "Article 21\nSupply chain security\n\nEnergy\tTransport"
	if got := extractText(t, buf.Bytes(), ".xlsx"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_excelInvalid(t *testing.T) {
	_, err := NewExtractor().ExtractBytes([]byte("not a workbook"), ".xlsx")
	if err == nil || !strings.Contains(err.Error(), "extract XLSX") {
		t.Errorf("expected extract XLSX error, got %v", err)
	}
}

func TestExtract_excelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controls.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	pages, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "Searchable text" {
		t.Errorf("got %+v", pages)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestExtractBytes_odtNeedsFile(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("x"), ".odt"); err == nil {
		t.Error("expected error for odt bytes")
	}
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// minimalDocx returns .docx zip bytes whose body is the given <w:p> elements.
func minimalDocx(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	body := `<w:p w:rsidR="00AB"><w:r><w:t>Article 23 </w:t></w:r><w:r><w:t xml:space="preserve">Reporting obligations</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Essential &amp; important entities shall notify.</w:t></w:r></w:p>` +
		`<w:p></w:p>`
	got := extractText(t, minimalDocx(body), ".docx")
	want := "Article 23 Reporting obligations\n\nEssential & important entities shall notify."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	orders := map[string]string{
		"part name first":    `<Override PartName="/word/document2.xml" ContentType="` + docxMainMIMEType + `"/>`,
		"content type first": `<Override ContentType="` + docxMainMIMEType + `" PartName="/word/document2.xml"/>`,
	}
	for name, override := range orders {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zip.NewWriter(&buf)
			ct, _ := w.Create("[Content_Types].xml")
			_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
` + override + `
</Types>`))
			fw, _ := w.Create("word/document2.xml")
			_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>Content from document2</w:t></w:r></w:p></w:body></w:document>`))
			_ = w.Close()

			if got := extractText(t, buf.Bytes(), ".docx"); got != "Content from document2" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error")
	}
}

func TestExtractBytes_html(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>ignored</title><style>p{}</style></head>
<body><h1>Article 21</h1>
<p>Cybersecurity   risk-management
 measures</p><script>var x = 1;</script>
<ul><li>policies on risk analysis</li><li>incident handling</li></ul>
<table><tr><td>a</td><td>b</td></tr></table></body></html>`
	got := extractText(t, []byte(page), ".html")
	want := "Article 21\n\nCybersecurity risk-management measures\n\npolicies on risk analysis\nincident handling\n\na\tb"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-broken"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	pages, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "File content" {
		t.Errorf("got %+v", pages)
	}
}
