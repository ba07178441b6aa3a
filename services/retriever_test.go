package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ai-learning-platform/internal/ai"
	"ai-learning-platform/internal/config"
	"ai-learning-platform/internal/search"
	"ai-learning-platform/models"
)

// memKeywordMatcher is a substring matcher over in-memory rows.
type memKeywordMatcher struct {
	rows []search.ChunkPayload
}

func (m *memKeywordMatcher) Match(ctx context.Context, term string, filters models.SearchFilters, limit int) ([]search.Match, error) {
	var matches []search.Match
	for _, row := range m.rows {
		haystack := strings.ToLower(row.Text + " " + row.DocumentTitle)
		if strings.Contains(haystack, strings.ToLower(term)) {
			matches = append(matches, search.Match{Score: 0.6, Payload: row})
		}
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

type failingKeywordMatcher struct{}

func (f *failingKeywordMatcher) Match(ctx context.Context, term string, filters models.SearchFilters, limit int) ([]search.Match, error) {
	return nil, errors.New("keyword index down")
}

// failingVectorIndex simulates a vector backend outage.
type failingVectorIndex struct{}

func (f *failingVectorIndex) EnsureReady(ctx context.Context) error { return nil }
func (f *failingVectorIndex) Upsert(ctx context.Context, points []search.Point) error {
	return errors.New("vector index down")
}
func (f *failingVectorIndex) Query(ctx context.Context, vector []float32, opts search.QueryOptions) ([]search.Match, error) {
	return nil, errors.New("vector index down")
}
func (f *failingVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return errors.New("vector index down")
}

func testProvider(t *testing.T) *ai.Provider {
	t.Helper()
	cfg := &config.Config{VectorDimensions: 128, MaxEmbedChars: 8000, EmbedRPM: 6000}
	provider, err := ai.NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return provider
}

// seedCorpus indexes a handful of chunks with fallback embeddings.
func seedCorpus(t *testing.T, provider *ai.Provider, vectors search.VectorIndex) []search.ChunkPayload {
	t.Helper()

	texts := []string{
		"Paging divides memory into fixed size frames.",
		"A mutex serializes access to a critical section.",
		"TCP uses a three way handshake to open a connection.",
		"B-trees keep keys sorted for logarithmic lookups.",
	}

	rows := make([]search.ChunkPayload, len(texts))
	points := make([]search.Point, len(texts))
	for i, text := range texts {
		vec, err := provider.Embed(context.Background(), text, ai.ModeDocument)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		rows[i] = search.ChunkPayload{
			ChunkID:       fmt.Sprintf("chunk-%d", i),
			DocumentID:    fmt.Sprintf("doc-%d", i),
			Text:          text,
			ChunkType:     models.ChunkTypeText,
			ChunkIndex:    0,
			DocumentTitle: fmt.Sprintf("Lecture %d", i),
		}
		points[i] = search.Point{ID: rows[i].ChunkID, Vector: vec, Payload: rows[i]}
	}

	if err := vectors.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return rows
}

func newTestRetriever(t *testing.T, vectors search.VectorIndex, keywords search.KeywordMatcher) *RetrieverService {
	t.Helper()
	return NewRetrieverService(testProvider(t), vectors, keywords, nil, nil, 10, 0, 5*time.Second)
}

func TestEmptyQueryIsValidationError(t *testing.T) {
	rs := newTestRetriever(t, search.NewMemoryIndex(), &memKeywordMatcher{})

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := rs.HybridSearch(context.Background(), query, 5, 0.7, 0.3, models.SearchFilters{})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("query %q: expected ValidationError, got %v", query, err)
		}
	}
}

func TestHybridWeightOneEqualsSemanticSearch(t *testing.T) {
	provider := testProvider(t)
	vectors := search.NewMemoryIndex()
	rows := seedCorpus(t, provider, vectors)
	keywords := &memKeywordMatcher{rows: rows}

	rs := NewRetrieverService(provider, vectors, keywords, nil, nil, 10, 0, 5*time.Second)
	ctx := context.Background()

	semantic, err := rs.SemanticSearch(ctx, "mutex critical section", 4, models.SearchFilters{})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	hybrid, err := rs.HybridSearch(ctx, "mutex critical section", 4, 1, 0, models.SearchFilters{})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}

	if len(hybrid) != len(semantic) {
		t.Fatalf("result counts differ: hybrid %d, semantic %d", len(hybrid), len(semantic))
	}
	for i := range hybrid {
		if hybrid[i].ChunkID != semantic[i].ChunkID {
			t.Errorf("position %d: hybrid %s vs semantic %s", i, hybrid[i].ChunkID, semantic[i].ChunkID)
		}
	}
}

func TestHybridWeightZeroEqualsKeywordSearch(t *testing.T) {
	provider := testProvider(t)
	vectors := search.NewMemoryIndex()
	rows := seedCorpus(t, provider, vectors)
	keywords := &memKeywordMatcher{rows: rows}

	rs := NewRetrieverService(provider, vectors, keywords, nil, nil, 10, 0, 5*time.Second)
	ctx := context.Background()

	keyword, err := rs.KeywordSearch(ctx, "mutex", 4, models.SearchFilters{})
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	hybrid, err := rs.HybridSearch(ctx, "mutex", 4, 0, 1, models.SearchFilters{})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}

	// Same results in the same order. The keyword leg has fewer hits than k,
	// so any divergence means zero-scored candidates from the skipped
	// semantic leg padded the result.
	if len(hybrid) != len(keyword) {
		t.Fatalf("result counts differ: hybrid %d, keyword %d", len(hybrid), len(keyword))
	}
	for i := range hybrid {
		if hybrid[i].ChunkID != keyword[i].ChunkID {
			t.Errorf("position %d: hybrid %s vs keyword %s", i, hybrid[i].ChunkID, keyword[i].ChunkID)
		}
		if hybrid[i].SemanticScore != 0 {
			t.Errorf("chunk %s carries a semantic score from a leg with weight 0", hybrid[i].ChunkID)
		}
	}
}

func TestHybridDegradesToKeywordOnlyOnVectorFailure(t *testing.T) {
	provider := testProvider(t)
	rows := []search.ChunkPayload{
		{ChunkID: "k1", DocumentID: "d1", Text: "scheduler quantum and context switches", DocumentTitle: "Scheduling"},
	}
	rs := NewRetrieverService(provider, &failingVectorIndex{}, &memKeywordMatcher{rows: rows}, nil, nil, 10, 0, 5*time.Second)

	results, err := rs.HybridSearch(context.Background(), "scheduler", 5, 0.7, 0.3, models.SearchFilters{})
	if err != nil {
		t.Fatalf("expected degraded result, got error: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "k1" {
		t.Fatalf("expected the keyword hit, got %+v", results)
	}
	if results[0].SemanticScore != 0 {
		t.Error("degraded result carries a semantic score from a failed leg")
	}
}

func TestHybridFailsWhenBothLegsFail(t *testing.T) {
	rs := newTestRetriever(t, &failingVectorIndex{}, &failingKeywordMatcher{})

	if _, err := rs.HybridSearch(context.Background(), "anything", 5, 0.7, 0.3, models.SearchFilters{}); err == nil {
		t.Fatal("expected error when both legs fail")
	}
}

func TestFuseWeightedUnionAndTieBreak(t *testing.T) {
	semantic := []models.SearchCandidate{
		{ChunkID: "both", ChunkIndex: 2, SemanticScore: 0.8},
		{ChunkID: "sem-only", ChunkIndex: 0, SemanticScore: 0.6},
	}
	keyword := []models.SearchCandidate{
		{ChunkID: "both", ChunkIndex: 2, KeywordScore: 0.5},
		{ChunkID: "key-only", ChunkIndex: 1, KeywordScore: 0.9},
	}

	fused := fuseWeighted(semantic, keyword, 0.7, 0.3)
	if len(fused) != 3 {
		t.Fatalf("expected union of 3 chunks, got %d", len(fused))
	}

	scores := map[string]float64{}
	for _, c := range fused {
		scores[c.ChunkID] = c.CombinedScore
	}
	if got, want := scores["both"], 0.7*0.8+0.3*0.5; !almostEqual(got, want) {
		t.Errorf("both-legs score = %v, want %v", got, want)
	}
	if got, want := scores["sem-only"], 0.7*0.6; !almostEqual(got, want) {
		t.Errorf("semantic-only score = %v, want %v", got, want)
	}
	if got, want := scores["key-only"], 0.3*0.9; !almostEqual(got, want) {
		t.Errorf("keyword-only score = %v, want %v", got, want)
	}

	// Ties break on higher raw semantic score, then lower chunk index.
	tied := fuseWeighted(
		[]models.SearchCandidate{
			{ChunkID: "a", ChunkIndex: 5, SemanticScore: 0.5},
			{ChunkID: "b", ChunkIndex: 1, SemanticScore: 0.5},
		},
		nil, 1, 0,
	)
	if tied[0].ChunkID != "b" {
		t.Errorf("equal scores should rank lower chunk index first, got %s", tied[0].ChunkID)
	}
}

func TestSearchCodeAppliesFilters(t *testing.T) {
	provider := testProvider(t)
	vectors := search.NewMemoryIndex()
	ctx := context.Background()

	codeVec, _ := provider.Embed(ctx, "func Lock()", ai.ModeDocument)
	textVec, _ := provider.Embed(ctx, "mutex lecture notes", ai.ModeDocument)
	vectors.Upsert(ctx, []search.Point{
		{ID: "code", Vector: codeVec, Payload: search.ChunkPayload{ChunkID: "code", ChunkType: models.ChunkTypeCode, Language: "go", Text: "func Lock()"}},
		{ID: "text", Vector: textVec, Payload: search.ChunkPayload{ChunkID: "text", ChunkType: models.ChunkTypeText, Text: "mutex lecture notes"}},
	})

	rs := NewRetrieverService(provider, vectors, &memKeywordMatcher{}, nil, nil, 10, 0, 5*time.Second)

	results, err := rs.SearchCode(ctx, "lock", 5, "Go", models.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchCode: %v", err)
	}
	for _, c := range results {
		if c.ChunkType != models.ChunkTypeCode || c.Language != "go" {
			t.Errorf("non-code result leaked through: %+v", c)
		}
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}
