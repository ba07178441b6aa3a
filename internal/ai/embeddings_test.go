package ai

import (
	"context"
	"errors"
	"os"
	"testing"

	"ai-learning-platform/internal/config"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
)

func TestFallbackEmbeddingDeterministic(t *testing.T) {
	text := "Operating systems use paging to manage virtual memory."

	first := FallbackEmbedding(text, ModeDocument, 768)
	second := FallbackEmbedding(text, ModeDocument, 768)

	if len(first) != 768 {
		t.Fatalf("expected 768 dimensions, got %d", len(first))
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at component %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestFallbackEmbeddingRange(t *testing.T) {
	vec := FallbackEmbedding("short text", ModeQuery, 768)

	for i, v := range vec {
		if v < -1.0 || v > 1.0 {
			t.Fatalf("component %d out of range [-1, 1]: %v", i, v)
		}
	}
}

func TestFallbackEmbeddingVariesByInput(t *testing.T) {
	a := FallbackEmbedding("alpha", ModeDocument, 128)
	b := FallbackEmbedding("beta", ModeDocument, 128)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different texts produced identical fallback vectors")
	}
}

func TestFallbackEmbeddingVariesByMode(t *testing.T) {
	doc := FallbackEmbedding("same text", ModeDocument, 128)
	query := FallbackEmbedding("same text", ModeQuery, 128)

	same := true
	for i := range doc {
		if doc[i] != query[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("document and query modes produced identical vectors")
	}
}

func TestVectorLooksReal(t *testing.T) {
	fallback := FallbackEmbedding("lecture notes on b-trees", ModeDocument, 768)
	if VectorLooksReal(fallback) {
		t.Error("fallback vector classified as real")
	}

	// Model-like vector: components concentrated near zero.
	modelLike := make([]float32, 768)
	for i := range modelLike {
		modelLike[i] = float32(i%7-3) * 0.01
	}
	if !VectorLooksReal(modelLike) {
		t.Error("concentrated vector classified as synthetic")
	}

	if VectorLooksReal(nil) {
		t.Error("empty vector classified as real")
	}
}

func TestProviderFallsBackWithoutKey(t *testing.T) {
	cfg := &config.Config{
		VectorDimensions: 768,
		MaxEmbedChars:    8000,
		EmbedRPM:         60,
	}

	provider, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	vec, err := provider.Embed(context.Background(), "what is a mutex", ModeQuery)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 768 {
		t.Fatalf("expected 768 dimensions, got %d", len(vec))
	}

	again, err := provider.Embed(context.Background(), "what is a mutex", ModeQuery)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range vec {
		if vec[i] != again[i] {
			t.Fatal("fallback embedding is not stable across calls")
		}
	}
}

func TestAuthFailuresClassifyAsUnavailable(t *testing.T) {
	provider, err := NewProvider(&config.Config{VectorDimensions: 128, EmbedRPM: 60}, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	span := trace.SpanFromContext(context.Background())

	for _, code := range []int{401, 403} {
		classified := provider.classify(&googleapi.Error{Code: code}, span)
		var unavailable *BackendUnavailableError
		if !errors.As(classified, &unavailable) {
			t.Fatalf("status %d: got %T, want BackendUnavailableError", code, classified)
		}
		if unavailable.Reason != "unauthorized" {
			t.Errorf("status %d: reason = %q, want unauthorized", code, unavailable.Reason)
		}
	}

	// Caller mistakes must not trigger the fallback.
	classified := provider.classify(&googleapi.Error{Code: 400}, span)
	var unavailable *BackendUnavailableError
	if errors.As(classified, &unavailable) {
		t.Error("status 400 classified as backend unavailable")
	}
}

func TestEmbedBatchFallsBackWithoutKey(t *testing.T) {
	cfg := &config.Config{
		VectorDimensions: 128,
		MaxEmbedChars:    8000,
		EmbedBatchSize:   2,
		EmbedRPM:         60,
	}
	provider, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	texts := []string{"paging", "segmentation", "swapping"}
	vectors, err := provider.EmbedBatch(context.Background(), texts, ModeDocument)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != 128 {
			t.Errorf("vector %d has %d dimensions, want 128", i, len(vec))
		}
		single, err := provider.Embed(context.Background(), texts[i], ModeDocument)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		for j := range vec {
			if vec[j] != single[j] {
				t.Fatalf("batch and single embeddings differ for %q at component %d", texts[i], j)
			}
		}
	}
}

func TestProviderRejectsEmptyText(t *testing.T) {
	cfg := &config.Config{VectorDimensions: 768, EmbedRPM: 60}
	provider, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	if _, err := provider.Embed(context.Background(), "   ", ModeDocument); err == nil {
		t.Fatal("expected error for whitespace-only text")
	}
}

func TestProviderRemoteEmbedding(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping remote embedding test")
	}

	cfg := &config.Config{
		GeminiAPIKey:          apiKey,
		GoogleEmbeddingsModel: "text-embedding-004",
		VectorDimensions:      768,
		MaxEmbedChars:         8000,
		EmbedTimeoutSeconds:   30,
		EmbedRPM:              10,
	}

	provider, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	vec, err := provider.Embed(context.Background(), "what is a binary search tree", ModeQuery)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) == 0 {
		t.Fatal("expected non-empty embedding")
	}
	if !VectorLooksReal(vec) {
		t.Error("remote embedding failed the variance probe")
	}
}
