package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/fileid"
	"github.com/hyperjump/regqa/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nis2.txt")
	writeFile(t, path, "Article 1\n\nSubject matter")

	docs, err := NewLoader(nil).LoadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	d := docs[0]
	if d.Text != "Article 1\n\nSubject matter" {
		t.Errorf("text = %q", d.Text)
	}
	if d.Metadata[models.MetaSource] != path {
		t.Errorf("source = %v", d.Metadata[models.MetaSource])
	}
	if d.Metadata[models.MetaDocID] != fileid.DocID(path) {
		t.Errorf("doc_id = %v", d.Metadata[models.MetaDocID])
	}
	if d.Metadata[models.MetaTitle] != "nis2.txt" {
		t.Errorf("title = %v", d.Metadata[models.MetaTitle])
	}
	if _, ok := d.Metadata[models.MetaPage]; ok {
		t.Error("plain text should have no page")
	}
}

func TestLoadFile_EmptyFileYieldsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.md")
	writeFile(t, path, "  \n ")
	docs, err := NewLoader(nil).LoadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no documents, got %d", len(docs))
	}
}

func TestLoadFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, path, "package main")
	_, err := NewLoader(nil).LoadFile(context.Background(), path)
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := NewLoader(nil).LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "second")
	writeFile(t, filepath.Join(dir, "a.md"), "first")
	writeFile(t, filepath.Join(dir, "notes.go"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.docx"), "not a zip")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "nested")
	writeFile(t, filepath.Join(dir, ".git", "d.txt"), "hidden")

	docs, err := NewLoader(nil).LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	want := []string{"first", "second", "nested"}
	if len(texts) != len(want) {
		t.Fatalf("texts = %q, want %q", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}

	flat, err := NewLoader([]string{"txt"}, WithRecursive(false)).LoadDirectory(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 1 || flat[0].Text != "second" {
		t.Errorf("non-recursive load = %+v", flat)
	}
}

func TestLoadDirectory_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, path, "x")
	if _, err := NewLoader(nil).LoadDirectory(context.Background(), path); err == nil {
		t.Error("expected error")
	}
}

func TestLoad_Mixed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "from dir")
	single := filepath.Join(dir, "single.html")
	writeFile(t, single, "<p>from file</p>")

	docs, err := NewLoader(nil).Load(context.Background(), single, filepath.Join(dir, "docs"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Text != "from file" || docs[1].Text != "from dir" {
		t.Errorf("docs = %+v", docs)
	}
}
