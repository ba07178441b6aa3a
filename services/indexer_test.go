package services

import (
	"context"
	"fmt"
	"testing"

	"ai-learning-platform/internal/search"
	"ai-learning-platform/models"
)

func newTestIndexer(t *testing.T, workers int) *IndexerService {
	t.Helper()
	chunker := NewChunkingService(1000, 200, 100, 50, 10)
	return NewIndexerService(nil, chunker, testProvider(t), search.NewMemoryIndex(), nil, nil, nil, workers)
}

func TestEmbedChunksEmbedsEveryChunk(t *testing.T) {
	ix := newTestIndexer(t, 2)

	chunks := make([]models.Chunk, 5)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:    fmt.Sprintf("c%d", i),
			Text:  fmt.Sprintf("chunk number %d about operating systems", i),
			Index: i,
		}
	}

	report := &models.IndexReport{}
	embedded := ix.embedChunks(context.Background(), "doc-1", chunks, report)

	if len(embedded) != len(chunks) {
		t.Fatalf("embedded %d of %d chunks", len(embedded), len(chunks))
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	for i, chunk := range embedded {
		if len(chunk.Embedding) != 128 {
			t.Errorf("chunk %d: embedding has %d dimensions, want 128", i, len(chunk.Embedding))
		}
		if chunk.Index != i {
			t.Errorf("chunk order changed: position %d holds index %d", i, chunk.Index)
		}
	}
}

func TestEmbedChunksDropsFailedChunks(t *testing.T) {
	ix := newTestIndexer(t, 4)

	chunks := []models.Chunk{
		{ID: "ok-1", Text: "paging and virtual memory", Index: 0},
		{ID: "bad", Text: "", Index: 1},
		{ID: "ok-2", Text: "deadlock detection with wait-for graphs", Index: 2},
	}

	report := &models.IndexReport{}
	embedded := ix.embedChunks(context.Background(), "doc-1", chunks, report)

	if len(embedded) != 2 {
		t.Fatalf("expected 2 surviving chunks, got %d", len(embedded))
	}
	for _, chunk := range embedded {
		if chunk.ID == "bad" {
			t.Error("failed chunk survived embedding")
		}
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %v", report.Errors)
	}
}

func TestLockForSerializesPerDocument(t *testing.T) {
	ix := newTestIndexer(t, 1)

	a := ix.lockFor("doc-a")
	if again := ix.lockFor("doc-a"); again != a {
		t.Error("same document returned a different mutex")
	}
	if other := ix.lockFor("doc-b"); other == a {
		t.Error("different documents share a mutex")
	}
}

func TestPayloadForDenormalizesDocumentMetadata(t *testing.T) {
	doc := &models.Document{
		ID:          "doc-9",
		Title:       "Week 3: Concurrency",
		Description: "Mutexes and condition variables",
		Category:    "lecture",
		ContentType: "notes",
		Topic:       "concurrency",
		Week:        3,
	}
	chunk := models.Chunk{
		ID:        "chunk-9",
		Text:      "A mutex serializes access.",
		ChunkType: models.ChunkTypeText,
		Index:     4,
		Language:  "go",
	}

	payload := payloadFor(doc, chunk)

	if payload.ChunkID != chunk.ID || payload.DocumentID != doc.ID {
		t.Fatalf("identity fields wrong: %+v", payload)
	}
	if payload.DocumentTitle != doc.Title ||
		payload.DocumentDescription != doc.Description ||
		payload.DocumentCategory != doc.Category ||
		payload.DocumentType != doc.ContentType ||
		payload.DocumentTopic != doc.Topic ||
		payload.DocumentWeek != doc.Week {
		t.Errorf("document metadata not denormalized: %+v", payload)
	}
	if payload.ChunkIndex != 4 || payload.Language != "go" {
		t.Errorf("chunk metadata lost: %+v", payload)
	}
}
