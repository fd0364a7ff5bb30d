package indexer

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
)

func mustChunker(t *testing.T, size, overlap int, opts ...ChunkerOption) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// reconstruct stitches chunks back together by dropping each chunk's overlap
// with its predecessor. It fails the test on gaps or oversized overlaps.
func reconstruct(t *testing.T, chunks []models.Chunk, size, overlap int) string {
	t.Helper()
	var b strings.Builder
	prevEnd := 0
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if len(runes) > size {
			t.Fatalf("chunk %d has %d runes, limit %d", i, len(runes), size)
		}
		start, ok := models.MetaInt(ch.Metadata, models.MetaStartIndex)
		if !ok {
			t.Fatalf("chunk %d missing start_index", i)
		}
		skip := prevEnd - start
		if skip < 0 {
			t.Fatalf("gap before chunk %d: prev end %d, start %d", i, prevEnd, start)
		}
		if skip > overlap {
			t.Fatalf("chunk %d overlaps by %d, limit %d", i, skip, overlap)
		}
		if skip >= len(runes) {
			t.Fatalf("chunk %d adds no new text", i)
		}
		b.WriteString(string(runes[skip:]))
		prevEnd = start + len(runes)
	}
	return b.String()
}

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		opts    []ChunkerOption
		wantErr bool
	}{
		{"valid", 1000, 200, nil, false},
		{"zero overlap", 10, 0, nil, false},
		{"overlap equals size", 10, 10, nil, true},
		{"overlap larger than size", 5, 9, nil, true},
		{"zero size", 0, 0, nil, true},
		{"negative overlap", 10, -1, nil, true},
		{"unknown strategy", 10, 2, []ChunkerOption{WithStrategy("semantic")}, true},
		{"article strategy", 10, 2, []ChunkerOption{WithStrategy(StrategyArticle)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap, nil, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewChunker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errs.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestChunker_WordScenario(t *testing.T) {
	c := mustChunker(t, 9, 2)
	doc := models.RawDocument{Text: "AAAA BBBB CCCC DDDD", Metadata: map[string]any{"source": "doc1"}}
	chunks := c.Split(doc)

	want := []string{"AAAA ", "A BBBB ", "B CCCC ", "C DDDD"}
	got := make([]string, len(chunks))
	for i, ch := range chunks {
		got[i] = ch.Text
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
	if reconstruct(t, chunks, 9, 2) != doc.Text {
		t.Error("chunks do not reconstruct the document")
	}
	for i, ch := range chunks {
		if ch.Source() != "doc1" {
			t.Errorf("chunk %d source = %q", i, ch.Source())
		}
		if ch.Index() != i {
			t.Errorf("chunk %d chunk_index = %d", i, ch.Index())
		}
	}
}

func TestChunker_EmptyAndShortDocuments(t *testing.T) {
	c := mustChunker(t, 50, 10)
	if chunks := c.Split(models.RawDocument{Text: ""}); len(chunks) != 0 {
		t.Errorf("empty text should yield no chunks, got %d", len(chunks))
	}

	doc := models.RawDocument{Text: "Article 21\nCybersecurity risk-management measures", Metadata: map[string]any{"source": "nis2", "page": 12}}
	chunks := c.Split(doc)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc.Text {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
	if p, _ := chunks[0].Page(); p != 12 {
		t.Errorf("page metadata lost: %v", chunks[0].Metadata)
	}
	if _, ok := doc.Metadata[models.MetaChunkIndex]; ok {
		t.Error("source document metadata must not be modified")
	}
}

func TestChunker_PrefersStructuralSeparators(t *testing.T) {
	c := mustChunker(t, 40, 0)
	text := "First paragraph, short.\n\nSecond paragraph, also short.\n\nThird one."
	got := c.SplitText(text)
	want := []string{"First paragraph, short.\n\n", "Second paragraph, also short.\n\n", "Third one."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitText = %q, want %q", got, want)
	}
}

func TestChunker_CharacterFallback(t *testing.T) {
	c := mustChunker(t, 4, 1)
	text := "abcdefghij"
	chunks := c.Split(models.RawDocument{Text: text})
	if reconstruct(t, chunks, 4, 1) != text {
		t.Error("character split does not reconstruct")
	}
	if chunks[0].Text != "abcd" || chunks[1].Text != "defg" {
		t.Errorf("unexpected chunks %q %q", chunks[0].Text, chunks[1].Text)
	}
}

func TestChunker_CountsRunes(t *testing.T) {
	c := mustChunker(t, 5, 1)
	text := "ääää öööö üüüü"
	chunks := c.Split(models.RawDocument{Text: text})
	if reconstruct(t, chunks, 5, 1) != text {
		t.Error("unicode text does not reconstruct")
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c := mustChunker(t, 30, 7)
	doc := models.RawDocument{Text: strings.Repeat("Member States shall ensure that entities take measures. ", 20)}
	a := c.Split(doc)
	b := c.Split(doc)
	if !reflect.DeepEqual(a, b) {
		t.Error("Split is not deterministic")
	}
}

func TestChunker_ReconstructionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "b", "Zz", " ", " ", "\n", "\n\n", "\n\n\n", ". ", ", ", "é", "Article 3"}
	for trial := 0; trial < 200; trial++ {
		var b strings.Builder
		n := rng.Intn(300)
		for i := 0; i < n; i++ {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		text := b.String()
		size := 1 + rng.Intn(60)
		overlap := rng.Intn(size)
		for _, strategy := range []string{StrategyRecursive, StrategyArticle} {
			c := mustChunker(t, size, overlap, WithStrategy(strategy))
			chunks := c.Split(models.RawDocument{Text: text})
			if got := reconstruct(t, chunks, size, overlap); got != text {
				t.Fatalf("trial %d (%s, size=%d overlap=%d): reconstruction mismatch\n got %q\nwant %q",
					trial, strategy, size, overlap, got, text)
			}
			for i, ch := range chunks {
				if ch.Index() != i {
					t.Fatalf("trial %d: chunk_index %d at position %d", trial, ch.Index(), i)
				}
			}
		}
	}
}

func TestChunker_ArticleStrategyKeepsArticlesApart(t *testing.T) {
	text := "Article 1\nSubject matter.\nArticle 2\nScope of the directive applies.\n"
	c := mustChunker(t, 40, 5, WithStrategy(StrategyArticle))
	chunks := c.Split(models.RawDocument{Text: text})
	for _, ch := range chunks {
		if strings.Contains(ch.Text, "Article 1") && strings.Contains(ch.Text, "Article 2") {
			t.Errorf("chunk spans two articles: %q", ch.Text)
		}
	}
	if !strings.HasPrefix(chunks[1].Text, "Article 2") {
		t.Errorf("second chunk should open article 2, got %q", chunks[1].Text)
	}
}

func TestChunker_SplitDocumentsKeepsOrder(t *testing.T) {
	c := mustChunker(t, 10, 2)
	docs := []models.RawDocument{
		{Text: "one two three four", Metadata: map[string]any{"source": "a"}},
		{Text: "", Metadata: map[string]any{"source": "empty"}},
		{Text: "five six", Metadata: map[string]any{"source": "b"}},
	}
	chunks := c.SplitDocuments(docs)
	if len(chunks) == 0 || chunks[len(chunks)-1].Source() != "b" {
		t.Fatalf("unexpected chunk order: %+v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i-1].Source() == "b" && chunks[i].Source() == "a" {
			t.Error("document order not preserved")
		}
	}
}

func TestPreprocess(t *testing.T) {
	if got := Preprocess("a\r\nb\rc\x00d\n\n\te"); got != "a\nb\ncd\n\n\te" {
		t.Errorf("Preprocess = %q", got)
	}
}
