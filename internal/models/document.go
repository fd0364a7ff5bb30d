// Package models defines the documents, chunks and results that flow through indexing and retrieval.
package models

// Metadata keys set by the loader and the chunker.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaDocID      = "doc_id"
	MetaTitle      = "title"
	MetaChunkIndex = "chunk_index"
	MetaStartIndex = "start_index"
)

// RawDocument is extracted text plus its source metadata. It is treated as immutable.
type RawDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a contiguous slice of a RawDocument's text. Its metadata is the
// parent metadata plus chunk_index and start_index.
type Chunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Source returns the source identifier, or "" when absent.
func (c Chunk) Source() string {
	s, _ := c.Metadata[MetaSource].(string)
	return s
}

// Index returns the chunk's position within its source document.
func (c Chunk) Index() int {
	i, _ := MetaInt(c.Metadata, MetaChunkIndex)
	return i
}

// Page returns the 1-based page number and whether one was recorded.
func (c Chunk) Page() (int, bool) {
	return MetaInt(c.Metadata, MetaPage)
}

// CloneMetadata returns a shallow copy of m. It never returns nil.
func CloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
