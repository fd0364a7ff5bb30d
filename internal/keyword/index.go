// Package keyword provides a full-text index over the chunks of a vector
// index, used to blend keyword relevance into retrieval.
package keyword

import (
	"github.com/hyperjump/regqa/internal/vector"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the source file name. Values > 1
	// favour chunks from documents whose name matches the query.
	TitleBoost float64
	// PhraseBoost multiplies the score of chunks containing the query as a phrase.
	PhraseBoost float64
	// Fuzzy enables typo-tolerant term matching.
	Fuzzy bool
	// Fuzziness is the maximum edit distance when Fuzzy is set (default 1).
	Fuzziness int
}

// EntrySource exposes the append-only entries of a vector index.
type EntrySource interface {
	EntriesFrom(from int) []*vector.Entry
}

// Result is a single keyword search hit, keyed by vector entry ID.
type Result struct {
	ID    string
	Score float64
}
