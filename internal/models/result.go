package models

// SearchResult is a retrieved chunk with its relevance score. Results are
// ordered by decreasing score. Hybrid retrieval also reports the two
// component scores it fused.
type SearchResult struct {
	ID            string  `json:"id"`
	Chunk         Chunk   `json:"chunk"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
}

// Chunks drops the scores.
func Chunks(results []SearchResult) []Chunk {
	out := make([]Chunk, len(results))
	for i, r := range results {
		out[i] = r.Chunk
	}
	return out
}

// QueryResponse is the response for a query request.
type QueryResponse struct {
	Query     string         `json:"query"`
	K         int            `json:"k"`
	Hybrid    bool           `json:"hybrid"`
	Results   []SearchResult `json:"results"`
	QueryTime int64          `json:"query_time_ms"`
}
