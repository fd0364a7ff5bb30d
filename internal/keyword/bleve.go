package keyword

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/vector"
)

const (
	fieldContent = "content"
	fieldTitle   = "title"
)

// ChunkIndex is an in-memory Bleve index mirroring the chunks of one vector
// index. Since vector indexes only grow, Sync indexes just the entries added
// since the previous call.
type ChunkIndex struct {
	index bleve.Index

	mu      sync.Mutex
	indexed int
}

// NewChunkIndex creates an empty in-memory index.
func NewChunkIndex() (*ChunkIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (no stemming) so article numbers and defined terms match exactly.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &ChunkIndex{index: index}, nil
}

// Sync indexes the entries of src that are not indexed yet and returns how
// many were added.
func (c *ChunkIndex) Sync(ctx context.Context, src EntrySource) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := src.EntriesFrom(c.indexed)
	if len(entries) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	batch := c.index.NewBatch()
	for _, e := range entries {
		doc := map[string]any{
			fieldContent: e.Chunk.Text,
			fieldTitle:   titleOf(e.Chunk.Source()),
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return 0, fmt.Errorf("failed to index chunk %s: %w", e.ID, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to index batch: %w", err)
	}
	c.indexed += len(entries)
	return len(entries), nil
}

// Indexed returns the number of entries indexed so far.
func (c *ChunkIndex) Indexed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexed
}

// titleOf turns a source path into searchable words: "nis2_directive.pdf"
// becomes "nis2 directive.pdf" since the standard analyzer keeps underscores.
func titleOf(source string) string {
	if source == "" {
		return ""
	}
	return strings.ReplaceAll(filepath.Base(source), "_", " ")
}

// Search returns up to limit hits ordered by decreasing score, ties broken
// by insertion order. An empty query returns no hits.
func (c *ChunkIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	if limit <= 0 {
		return nil, errs.Configuration("keyword.search", "k", "must be positive, got %d", limit)
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}
	var o SearchOptions
	if opts != nil {
		o = *opts
	}
	if o.Fuzziness <= 0 {
		o.Fuzziness = 1
	}

	reqSize := max(limit*2, 50)
	scores := make(map[string]float64)

	contentHits, err := c.search(ctx, c.termsQuery(terms, fieldContent, o), reqSize)
	if err != nil {
		return nil, err
	}
	for id, s := range contentHits {
		scores[id] += s
	}
	if o.TitleBoost > 1 {
		titleHits, err := c.search(ctx, c.termsQuery(terms, fieldTitle, o), reqSize)
		if err != nil {
			return nil, err
		}
		for id, s := range titleHits {
			scores[id] += s * o.TitleBoost
		}
	}

	// Partial matches of multi-term queries are penalized by (matched/total)^2.
	if len(terms) > 1 {
		coverage := make(map[string]int)
		for _, term := range terms {
			hits, err := c.search(ctx, c.termsQuery([]string{term}, "", o), reqSize)
			if err != nil {
				return nil, err
			}
			for id := range hits {
				coverage[id]++
			}
		}
		for id := range scores {
			matched := max(coverage[id], 1)
			ratio := float64(matched) / float64(len(terms))
			scores[id] *= ratio * ratio
		}
		if o.PhraseBoost > 1 {
			pq := bleve.NewMatchPhraseQuery(query)
			pq.SetField(fieldContent)
			phrases, err := c.search(ctx, pq, reqSize)
			if err != nil {
				return nil, err
			}
			for id := range phrases {
				if _, ok := scores[id]; ok {
					scores[id] *= o.PhraseBoost
				}
			}
		}
	}

	out := make([]Result, 0, len(scores))
	for id, s := range scores {
		out = append(out, Result{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return seqOf(out[i].ID) < seqOf(out[j].ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *ChunkIndex) search(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make(map[string]float64, len(res.Hits))
	for _, h := range res.Hits {
		hits[h.ID] = h.Score
	}
	return hits, nil
}

// termsQuery matches any of terms in field (all fields when field is empty).
func (c *ChunkIndex) termsQuery(terms []string, field string, o SearchOptions) blevequery.Query {
	if !o.Fuzzy {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func seqOf(id string) uint64 {
	seq, _ := vector.ParseID(id)
	return seq
}

// Close releases the index.
func (c *ChunkIndex) Close() error {
	return c.index.Close()
}
