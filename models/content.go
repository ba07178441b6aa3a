package models

import "time"

// Document status values
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

// Chunk type values
const (
	ChunkTypeText        = "text"
	ChunkTypeCode        = "code"
	ChunkTypeHeading     = "heading"
	ChunkTypeHandwritten = "handwritten"
)

// Document is the course material record owned by the external content
// store. This subsystem reads it and maintains its chunk rows; it never
// creates or mutates the document itself.
type Document struct {
	ID          string            `json:"id" bson:"_id"`
	Title       string            `json:"title" bson:"title"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Category    string            `json:"category,omitempty" bson:"category,omitempty"`
	ContentType string            `json:"content_type,omitempty" bson:"content_type,omitempty"`
	Topic       string            `json:"topic,omitempty" bson:"topic,omitempty"`
	Week        int               `json:"week,omitempty" bson:"week,omitempty"`
	FileName    string            `json:"file_name,omitempty" bson:"file_name,omitempty"`
	MimeType    string            `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`

	// Maintained by the indexer.
	Status      string    `json:"status,omitempty" bson:"status,omitempty"`
	Embedding   []float32 `json:"-" bson:"embedding,omitempty"`
	TextContent []byte    `json:"-" bson:"text_content,omitempty"` // compressed extracted text
	Compression string    `json:"-" bson:"compression,omitempty"`
	IndexedAt   time.Time `json:"indexed_at,omitempty" bson:"indexed_at,omitempty"`
}

// Chunk is a contiguous slice of a document, the unit of retrieval and
// embedding. Chunks for a document are totally ordered by Index and are
// replaced wholesale on reindex, never patched.
type Chunk struct {
	ID         string `json:"chunk_id" bson:"chunk_id"`
	DocumentID string `json:"document_id" bson:"document_id"`
	Text       string `json:"text" bson:"text"`
	ChunkType  string `json:"chunk_type" bson:"chunk_type"`
	Index      int    `json:"chunk_index" bson:"chunk_index"`
	StartPos   int    `json:"start_position" bson:"start_position"`
	EndPos     int    `json:"end_position" bson:"end_position"`

	// Code chunk metadata, empty for text chunks.
	Language     string `json:"language,omitempty" bson:"language,omitempty"`
	FunctionName string `json:"function_name,omitempty" bson:"function_name,omitempty"`
	ClassName    string `json:"class_name,omitempty" bson:"class_name,omitempty"`
	LineStart    int    `json:"line_start,omitempty" bson:"line_start,omitempty"`
	LineEnd      int    `json:"line_end,omitempty" bson:"line_end,omitempty"`

	Embedding []float32 `json:"-" bson:"vector,omitempty"`
}

// IndexReport summarizes one indexing job. A subset of chunks failing to
// embed or store does not fail the job; failures are collected here.
type IndexReport struct {
	DocumentID    string    `json:"document_id"`
	ChunksCreated int       `json:"chunks_created"`
	TotalChunks   int       `json:"total_chunks"`
	TextLength    int       `json:"text_length"`
	Errors        []string  `json:"errors,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// IndexStatus reports whether a document has chunks and a document-level
// embedding in place.
type IndexStatus struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	IsIndexed  bool   `json:"is_indexed"`
	ChunkCount int    `json:"chunk_count"`
}
