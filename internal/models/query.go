package models

import (
	"strings"

	"github.com/hyperjump/regqa/internal/errs"
)

// MaxK caps the number of results a single query may ask for.
const MaxK = 100

// QueryRequest is the input of answerable_context over HTTP.
type QueryRequest struct {
	Query  string `json:"query"`
	K      int    `json:"k,omitempty"`
	Hybrid bool   `json:"hybrid,omitempty"`
}

// Validate checks the request and fills in defaultK when K is unset.
func (q *QueryRequest) Validate(defaultK int) error {
	const op = "query.validate"
	if strings.TrimSpace(q.Query) == "" {
		return errs.EmptyInput(op, "query cannot be empty")
	}
	if q.K < 0 {
		return errs.Configuration(op, "k", "must be positive, got %d", q.K)
	}
	if q.K == 0 {
		q.K = defaultK
	}
	if q.K > MaxK {
		q.K = MaxK
	}
	return nil
}

// DocumentInput is the input for appending raw text to the index over HTTP.
type DocumentInput struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentsRequest appends documents to the served index.
type DocumentsRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// RawDocuments converts the request, defaulting the source to defaultSource.
func (r *DocumentsRequest) RawDocuments(defaultSource string) ([]RawDocument, error) {
	if len(r.Documents) == 0 {
		return nil, errs.EmptyInput("documents.validate", "no documents")
	}
	docs := make([]RawDocument, len(r.Documents))
	for i, d := range r.Documents {
		if strings.TrimSpace(d.Text) == "" {
			return nil, errs.Configuration("documents.validate", "text", "document %d has no text", i)
		}
		meta := CloneMetadata(d.Metadata)
		if _, ok := meta[MetaSource]; !ok {
			meta[MetaSource] = defaultSource
		}
		docs[i] = RawDocument{Text: d.Text, Metadata: meta}
	}
	return docs, nil
}
