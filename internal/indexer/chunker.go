// Package indexer splits documents into chunks and builds vector indices from them.
package indexer

import (
	"regexp"
	"unicode/utf8"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
)

// DefaultSeparators go from most structural to least: section break,
// paragraph, line, sentence, clause, word, character.
var DefaultSeparators = []string{"\n\n\n", "\n\n", "\n", ". ", ", ", " ", ""}

// Chunking strategies.
const (
	StrategyRecursive = "recursive"
	StrategyArticle   = "article"
)

// articleHeading matches lines that open a new article, section, chapter or annex.
var articleHeading = regexp.MustCompile(`(?m)^[ \t]*(?:Article|ARTICLE|Section|SECTION|Chapter|CHAPTER|Annex|ANNEX)[ \t]+[0-9IVXLCDM]+\b`)

// Chunker splits text into overlapping chunks of at most chunkSize characters
// (Unicode code points), trying separators in order.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   [][]rune
	strategy     string
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithStrategy selects the recursive (default) or article-aware strategy.
func WithStrategy(strategy string) ChunkerOption {
	return func(c *Chunker) {
		c.strategy = strategy
	}
}

// NewChunker validates the chunking parameters. A nil or empty separator list
// means DefaultSeparators.
func NewChunker(chunkSize, chunkOverlap int, separators []string, opts ...ChunkerOption) (*Chunker, error) {
	const op = "indexer.chunker"
	if chunkSize <= 0 {
		return nil, errs.Configuration(op, "chunk_size", "must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, errs.Configuration(op, "chunk_overlap", "must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, errs.Configuration(op, "chunk_overlap", "must be smaller than chunk_size (%d >= %d)", chunkOverlap, chunkSize)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	c := &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		strategy:     StrategyRecursive,
	}
	for _, s := range separators {
		c.separators = append(c.separators, []rune(s))
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategy != StrategyRecursive && c.strategy != StrategyArticle {
		return nil, errs.Configuration(op, "strategy", "unknown chunking strategy %q", c.strategy)
	}
	return c, nil
}

// span is a half-open range of rune offsets.
type span struct {
	start, end int
}

// Split cuts doc into chunks. Each chunk carries the document metadata plus
// chunk_index and start_index.
func (c *Chunker) Split(doc models.RawDocument) []models.Chunk {
	text := []rune(doc.Text)
	spans := c.spans(doc.Text, text)
	chunks := make([]models.Chunk, 0, len(spans))
	for i, s := range spans {
		meta := models.CloneMetadata(doc.Metadata)
		meta[models.MetaChunkIndex] = i
		meta[models.MetaStartIndex] = s.start
		chunks = append(chunks, models.Chunk{
			Text:     string(text[s.start:s.end]),
			Metadata: meta,
		})
	}
	return chunks
}

// SplitDocuments splits every document, keeping input order.
func (c *Chunker) SplitDocuments(docs []models.RawDocument) []models.Chunk {
	var out []models.Chunk
	for _, d := range docs {
		out = append(out, c.Split(d)...)
	}
	return out
}

// SplitText returns only the chunk texts.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	spans := c.spans(text, runes)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s.start:s.end])
	}
	return out
}

func (c *Chunker) spans(raw string, text []rune) []span {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []span{{0, len(text)}}
	}
	if c.strategy == StrategyArticle {
		var out []span
		for _, sec := range sections(raw, len(text)) {
			if sec.end-sec.start <= c.chunkSize {
				out = append(out, sec)
				continue
			}
			out = append(out, c.merge(c.pieces(text, sec.start, sec.end, c.separators))...)
		}
		return out
	}
	return c.merge(c.pieces(text, 0, len(text), c.separators))
}

// sections cuts the text at article headings. Sections are contiguous and
// cover the whole text.
func sections(raw string, n int) []span {
	var bounds []int
	for _, loc := range articleHeading.FindAllStringIndex(raw, -1) {
		if r := utf8.RuneCountInString(raw[:loc[0]]); r > 0 {
			bounds = append(bounds, r)
		}
	}
	var out []span
	start := 0
	for _, b := range bounds {
		if b > start {
			out = append(out, span{start, b})
			start = b
		}
	}
	return append(out, span{start, n})
}

// pieces splits text[lo:hi] into contiguous spans of at most chunkSize runes.
// The separator stays attached to the end of the piece it terminates.
func (c *Chunker) pieces(text []rune, lo, hi int, seps [][]rune) []span {
	if hi-lo <= c.chunkSize {
		return []span{{lo, hi}}
	}
	idx := -1
	for i, s := range seps {
		if len(s) == 0 || indexRunes(text[lo:hi], s, 0) >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 || len(seps[idx]) == 0 {
		// Character level; always terminates.
		out := make([]span, 0, hi-lo)
		for i := lo; i < hi; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}
	sep, rest := seps[idx], seps[idx+1:]
	var out []span
	pos := lo
	for pos < hi {
		at := indexRunes(text[:hi], sep, pos)
		end := hi
		if at >= 0 {
			end = at + len(sep)
		}
		if end-pos > c.chunkSize {
			out = append(out, c.pieces(text, pos, end, rest)...)
		} else {
			out = append(out, span{pos, end})
		}
		pos = end
	}
	return out
}

// merge greedily joins consecutive pieces into chunks. Each new chunk starts
// with up to chunkOverlap runes of the previous chunk, fewer when the next
// piece would not fit otherwise, and always past the previous chunk's start.
func (c *Chunker) merge(pieces []span) []span {
	if len(pieces) == 0 {
		return nil
	}
	var out []span
	cur := pieces[0]
	for _, p := range pieces[1:] {
		if p.end-cur.start <= c.chunkSize {
			cur.end = p.end
			continue
		}
		out = append(out, cur)
		start := max(cur.end-c.chunkOverlap, p.end-c.chunkSize, cur.start+1)
		cur = span{start, p.end}
	}
	return append(out, cur)
}

// indexRunes returns the first index >= from where sep occurs in text, or -1.
func indexRunes(text, sep []rune, from int) int {
	n := len(sep)
	for i := from; i+n <= len(text); i++ {
		match := true
		for j := 0; j < n; j++ {
			if text[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
