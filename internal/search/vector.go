package search

import (
	"context"

	"ai-learning-platform/models"
)

// ChunkPayload is the metadata stored alongside each vector. It round-trips
// through the index as JSON and carries everything the retriever needs to
// build a SearchCandidate without a second lookup.
// The same struct doubles as the Mongo chunk row, hence the bson tags.
type ChunkPayload struct {
	ChunkID    string `json:"chunk_id" bson:"chunk_id"`
	DocumentID string `json:"document_id" bson:"document_id"`
	Text       string `json:"text" bson:"text"`
	ChunkType  string `json:"chunk_type" bson:"chunk_type"`
	ChunkIndex int    `json:"chunk_index" bson:"chunk_index"`

	DocumentTitle       string `json:"document_title,omitempty" bson:"document_title,omitempty"`
	DocumentDescription string `json:"document_description,omitempty" bson:"document_description,omitempty"`
	DocumentCategory    string `json:"document_category,omitempty" bson:"document_category,omitempty"`
	DocumentType        string `json:"document_type,omitempty" bson:"document_type,omitempty"`
	DocumentTopic       string `json:"document_topic,omitempty" bson:"document_topic,omitempty"`
	DocumentWeek        int    `json:"document_week,omitempty" bson:"document_week,omitempty"`

	Language     string `json:"language,omitempty" bson:"language,omitempty"`
	FunctionName string `json:"function_name,omitempty" bson:"function_name,omitempty"`
	ClassName    string `json:"class_name,omitempty" bson:"class_name,omitempty"`
	LineStart    int    `json:"line_start,omitempty" bson:"line_start,omitempty"`
	LineEnd      int    `json:"line_end,omitempty" bson:"line_end,omitempty"`
}

// Point is one vector plus payload, keyed by the chunk ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload ChunkPayload
}

// Match is a scored query hit. Score is cosine similarity in [0, 1] for
// normalized backends.
type Match struct {
	Score   float64
	Payload ChunkPayload
}

// QueryOptions bound a similarity query. Matches below Threshold are dropped
// by the index, not by the caller.
type QueryOptions struct {
	TopK      int
	Threshold float64
	Filters   models.SearchFilters
}

// VectorIndex is the similarity index collaborator. Implementations must
// treat DeleteByDocument of an unknown document as a no-op so
// delete-then-recreate indexing stays idempotent.
type VectorIndex interface {
	EnsureReady(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// matchesFilters applies metadata filters to a payload. Shared by the
// in-memory index and tests; Qdrant evaluates the equivalent filter
// server-side.
func matchesFilters(p ChunkPayload, f models.SearchFilters) bool {
	if f.Category != "" && p.DocumentCategory != f.Category {
		return false
	}
	if f.ContentType != "" && p.DocumentType != f.ContentType {
		return false
	}
	if f.Week != 0 && p.DocumentWeek != f.Week {
		return false
	}
	if f.Language != "" && p.Language != f.Language {
		return false
	}
	if f.ChunkType != "" && p.ChunkType != f.ChunkType {
		return false
	}
	return true
}
