package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
	"github.com/hyperjump/regqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLength is the number of characters of chunk text shown per result.
const snippetLength = 300

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", errs.Configuration("cli.output", "output", "unknown output format %q; use text or json", s)
}

// WriteResults writes a query response to w in the given format.
func WriteResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeResultsText(w, response)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResultsText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", len(response.Results), response.Query, response.QueryTime)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		if response.Hybrid {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
				i+1, result.Score, result.KeywordScore, result.SemanticScore)
		} else {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, result.Score)
		}
		fmt.Fprintf(w, "Source: %s\n", FormatSource(result.Chunk.Metadata))
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(strings.TrimSpace(result.Chunk.Text), snippetLength))
	}
	if len(response.Results) > 0 {
		writeSources(w, response.Results)
	}
}

// writeSources lists the distinct sources of the results in rank order.
func writeSources(w io.Writer, results []models.SearchResult) {
	fmt.Fprintln(w, "Sources:")
	seen := make(map[string]bool, len(results))
	n := 0
	for _, r := range results {
		src := FormatSource(r.Chunk.Metadata)
		if seen[src] {
			continue
		}
		seen[src] = true
		n++
		fmt.Fprintf(w, "%d. %s\n", n, src)
	}
	fmt.Fprintln(w)
}

// FormatSource renders a chunk's source and, when known, its page.
func FormatSource(meta map[string]any) string {
	src, _ := meta[models.MetaSource].(string)
	if src == "" {
		src = "Unknown"
	}
	if page, ok := models.MetaInt(meta, models.MetaPage); ok {
		return fmt.Sprintf("%s (Page %d)", src, page)
	}
	return src
}
