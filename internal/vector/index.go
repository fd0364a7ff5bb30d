// Package vector provides the append-only in-memory vector index used for similarity retrieval.
package vector

import (
	"strconv"

	"github.com/hyperjump/regqa/internal/errs"
	"github.com/hyperjump/regqa/internal/models"
)

// Metric is the similarity function an index ranks by. Scores are always
// "higher is more relevant".
type Metric string

const (
	// MetricCosine scores by cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"
	// MetricL2 scores by 1/(1+euclidean distance) in (0, 1].
	MetricL2 Metric = "l2"
)

// ParseMetric maps a configured name to a Metric. "" means cosine.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	default:
		return "", errs.Configuration("vector.metric", "metric", "unknown metric %q (supported: cosine, l2)", name)
	}
}

// Entry is one indexed chunk. Entries are never modified after insertion.
type Entry struct {
	ID     string
	Seq    uint64
	Vector []float32
	Chunk  models.Chunk
}

// Info is the index-level metadata.
type Info struct {
	Dimension  int    `json:"dimension"`
	Count      int    `json:"count"`
	ProviderID string `json:"provider_id"`
	Metric     Metric `json:"metric"`
	Version    uint64 `json:"version"`
}

// FormatID renders an insertion sequence number as an entry ID.
func FormatID(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

// ParseID returns the sequence number encoded in an entry ID.
func ParseID(id string) (uint64, bool) {
	seq, err := strconv.ParseUint(id, 10, 64)
	return seq, err == nil
}
