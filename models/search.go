package models

// SearchFilters narrows candidates by parent-document metadata. Zero values
// mean "no filter".
type SearchFilters struct {
	Category    string `json:"category,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Week        int    `json:"week,omitempty"`
	Language    string `json:"language,omitempty"`
	ChunkType   string `json:"chunk_type,omitempty"`
}

// SearchCandidate is a ranked chunk. CombinedScore is
// semanticWeight*SemanticScore + keywordWeight*KeywordScore; the weights are
// caller-supplied and need not sum to 1.
type SearchCandidate struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Text          string  `json:"text"`
	ChunkType     string  `json:"chunk_type"`
	ChunkIndex    int     `json:"chunk_index"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
	CombinedScore float64 `json:"combined_score"`

	// Parent document metadata for display and filtering.
	DocumentTitle    string `json:"document_title,omitempty"`
	DocumentCategory string `json:"document_category,omitempty"`
	DocumentType     string `json:"document_type,omitempty"`
	DocumentTopic    string `json:"document_topic,omitempty"`
	DocumentWeek     int    `json:"document_week,omitempty"`

	// Code chunk metadata.
	Language     string `json:"language,omitempty"`
	FunctionName string `json:"function_name,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
	LineStart    int    `json:"line_start,omitempty"`
	LineEnd      int    `json:"line_end,omitempty"`
}

// Source is a candidate context document handed to the generation layer,
// annotated by the grounding verifier. ActuallyUsed is derived from the
// answer text, never persisted as ground truth.
type Source struct {
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title"`
	Category      string  `json:"category,omitempty"`
	Excerpt       string  `json:"excerpt,omitempty"`
	Relevance     float64 `json:"relevance"`
	ActuallyUsed  bool    `json:"actually_used"`
	CitationFound bool    `json:"citation_found"`
}

// Hallucination risk levels derived from hedging-phrase counts.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// GroundingReport is the trust signal emitted before an answer is surfaced.
// UsedSources contains only sources the answer actually drew on; unused
// candidates are never surfaced as citations.
type GroundingReport struct {
	UsedSources       []Source `json:"used_sources"`
	GroundingScore    float64  `json:"grounding_score"`
	HallucinationRisk string   `json:"hallucination_risk"`
	IsGrounded        bool     `json:"is_grounded"`
}
