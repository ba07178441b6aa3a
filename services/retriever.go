package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ai-learning-platform/internal/ai"
	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/search"
	"ai-learning-platform/internal/telemetry"
	"ai-learning-platform/models"
)

// Default fusion weights; callers may override per request and the weights
// need not sum to one.
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// RetrieverService answers search queries over the indexed corpus. The
// hybrid mode fuses a similarity leg and a keyword leg; when the vector
// backend is down it degrades to keyword-only rather than failing.
type RetrieverService struct {
	provider  *ai.Provider
	vectors   search.VectorIndex
	keywords  search.KeywordMatcher
	cache     *SearchCacheService
	metrics   *telemetry.Metrics
	topK      int
	threshold float64
	timeout   time.Duration
}

func NewRetrieverService(
	provider *ai.Provider,
	vectors search.VectorIndex,
	keywords search.KeywordMatcher,
	cache *SearchCacheService,
	metrics *telemetry.Metrics,
	topK int,
	threshold float64,
	timeout time.Duration,
) *RetrieverService {
	if topK <= 0 {
		topK = 10
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RetrieverService{
		provider:  provider,
		vectors:   vectors,
		keywords:  keywords,
		cache:     cache,
		metrics:   metrics,
		topK:      topK,
		threshold: threshold,
		timeout:   timeout,
	}
}

// SemanticSearch ranks chunks by embedding similarity alone.
func (rs *RetrieverService) SemanticSearch(ctx context.Context, query string, k int, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	query, k, err := rs.validate(query, k)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()

	key := rs.cacheKey("semantic", query, k, 1, 0, filters)
	if cached, ok := rs.cacheGet(ctx, key); ok {
		return cached, nil
	}

	started := time.Now()
	candidates, err := rs.semanticLeg(ctx, query, k, filters)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].CombinedScore = candidates[i].SemanticScore
	}

	rs.recordSearch("semantic", started, false)
	rs.cacheSet(ctx, key, candidates)
	return candidates, nil
}

// KeywordSearch ranks chunks by term matching alone.
func (rs *RetrieverService) KeywordSearch(ctx context.Context, query string, k int, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	query, k, err := rs.validate(query, k)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()

	key := rs.cacheKey("keyword", query, k, 0, 1, filters)
	if cached, ok := rs.cacheGet(ctx, key); ok {
		return cached, nil
	}

	started := time.Now()
	candidates, err := rs.keywordLeg(ctx, query, k, filters)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].CombinedScore = candidates[i].KeywordScore
	}

	rs.recordSearch("keyword", started, false)
	rs.cacheSet(ctx, key, candidates)
	return candidates, nil
}

// HybridSearch runs both legs concurrently and fuses them by weighted union.
// A chunk found by only one leg scores zero on the other. A failed vector
// leg degrades the result to keyword-only; a discarded partial leg is never
// mixed in.
func (rs *RetrieverService) HybridSearch(ctx context.Context, query string, k int, semanticWeight, keywordWeight float64, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	query, k, err := rs.validate(query, k)
	if err != nil {
		return nil, err
	}
	if semanticWeight == 0 && keywordWeight == 0 {
		semanticWeight = DefaultSemanticWeight
		keywordWeight = DefaultKeywordWeight
	}

	ctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()

	key := rs.cacheKey("hybrid", query, k, semanticWeight, keywordWeight, filters)
	if cached, ok := rs.cacheGet(ctx, key); ok {
		return cached, nil
	}

	started := time.Now()

	var (
		wg          sync.WaitGroup
		semantic    []models.SearchCandidate
		keyword     []models.SearchCandidate
		semanticErr error
		keywordErr  error
	)

	// Over-fetch both legs so the fused ranking has the full union to
	// choose from. A zero-weighted leg is skipped entirely: its candidates
	// would fuse to zero and pad the result past what the surviving leg
	// actually found.
	legK := k * 2
	runSemantic := semanticWeight > 0
	runKeyword := keywordWeight > 0

	if runSemantic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semantic, semanticErr = rs.semanticLeg(ctx, query, legK, filters)
		}()
	}
	if runKeyword {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keyword, keywordErr = rs.keywordLeg(ctx, query, legK, filters)
		}()
	}
	wg.Wait()

	degraded := false
	switch {
	case semanticErr != nil && keywordErr != nil:
		return nil, semanticErr
	case semanticErr != nil:
		if !runKeyword {
			return nil, semanticErr
		}
		logger.Warn("Vector leg failed, degrading to keyword-only", "error", semanticErr)
		semantic = nil
		degraded = true
	case keywordErr != nil:
		if !runSemantic {
			return nil, keywordErr
		}
		logger.Warn("Keyword leg failed, degrading to semantic-only", "error", keywordErr)
		keyword = nil
		degraded = true
	}

	fused := fuseWeighted(semantic, keyword, semanticWeight, keywordWeight)
	if len(fused) > k {
		fused = fused[:k]
	}

	rs.recordSearch("hybrid", started, degraded)
	if !degraded {
		rs.cacheSet(ctx, key, fused)
	}
	return fused, nil
}

// SearchCode restricts retrieval to code chunks, optionally to one language.
func (rs *RetrieverService) SearchCode(ctx context.Context, query string, k int, language string, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	filters.ChunkType = models.ChunkTypeCode
	if language != "" {
		filters.Language = strings.ToLower(language)
	}
	return rs.HybridSearch(ctx, query, k, 0, 0, filters)
}

func (rs *RetrieverService) semanticLeg(ctx context.Context, query string, k int, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	vector, err := rs.provider.Embed(ctx, query, ai.ModeQuery)
	if err != nil {
		return nil, err
	}

	matches, err := rs.vectors.Query(ctx, vector, search.QueryOptions{
		TopK:      k,
		Threshold: rs.threshold,
		Filters:   filters,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]models.SearchCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = candidateFrom(m.Payload)
		candidates[i].SemanticScore = m.Score
	}
	return candidates, nil
}

func (rs *RetrieverService) keywordLeg(ctx context.Context, query string, k int, filters models.SearchFilters) ([]models.SearchCandidate, error) {
	matches, err := rs.keywords.Match(ctx, query, filters, k)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.SearchCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = candidateFrom(m.Payload)
		candidates[i].KeywordScore = m.Score
	}
	return candidates, nil
}

// fuseWeighted merges two ranked legs by chunk identity. Pure and
// single-threaded; all concurrency stays in the legs.
func fuseWeighted(semantic, keyword []models.SearchCandidate, semanticWeight, keywordWeight float64) []models.SearchCandidate {
	byChunk := make(map[string]*models.SearchCandidate)
	order := make([]string, 0, len(semantic)+len(keyword))

	for _, c := range semantic {
		cand := c
		byChunk[c.ChunkID] = &cand
		order = append(order, c.ChunkID)
	}
	for _, c := range keyword {
		if existing, ok := byChunk[c.ChunkID]; ok {
			existing.KeywordScore = c.KeywordScore
			continue
		}
		cand := c
		byChunk[c.ChunkID] = &cand
		order = append(order, c.ChunkID)
	}

	fused := make([]models.SearchCandidate, 0, len(order))
	for _, id := range order {
		c := byChunk[id]
		c.CombinedScore = semanticWeight*c.SemanticScore + keywordWeight*c.KeywordScore
		fused = append(fused, *c)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].CombinedScore != fused[j].CombinedScore {
			return fused[i].CombinedScore > fused[j].CombinedScore
		}
		if fused[i].SemanticScore != fused[j].SemanticScore {
			return fused[i].SemanticScore > fused[j].SemanticScore
		}
		return fused[i].ChunkIndex < fused[j].ChunkIndex
	})

	return fused
}

func (rs *RetrieverService) validate(query string, k int) (string, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, NewValidationError("query must not be empty")
	}
	if k <= 0 {
		k = rs.topK
	}
	return query, k, nil
}

func (rs *RetrieverService) cacheKey(mode, query string, k int, sw, kw float64, filters models.SearchFilters) string {
	if rs.cache == nil {
		return ""
	}
	return rs.cache.Key(mode, query, k, sw, kw, filters)
}

func (rs *RetrieverService) cacheGet(ctx context.Context, key string) ([]models.SearchCandidate, bool) {
	if rs.cache == nil || key == "" {
		return nil, false
	}
	return rs.cache.Get(ctx, key)
}

func (rs *RetrieverService) cacheSet(ctx context.Context, key string, results []models.SearchCandidate) {
	if rs.cache == nil || key == "" {
		return
	}
	rs.cache.Set(ctx, key, results)
}

func (rs *RetrieverService) recordSearch(mode string, started time.Time, degraded bool) {
	if rs.metrics != nil {
		rs.metrics.RecordSearch(mode, time.Since(started).Seconds(), degraded)
	}
}

func candidateFrom(p search.ChunkPayload) models.SearchCandidate {
	return models.SearchCandidate{
		ChunkID:    p.ChunkID,
		DocumentID: p.DocumentID,
		Text:       p.Text,
		ChunkType:  p.ChunkType,
		ChunkIndex: p.ChunkIndex,

		DocumentTitle:    p.DocumentTitle,
		DocumentCategory: p.DocumentCategory,
		DocumentType:     p.DocumentType,
		DocumentTopic:    p.DocumentTopic,
		DocumentWeek:     p.DocumentWeek,

		Language:     p.Language,
		FunctionName: p.FunctionName,
		ClassName:    p.ClassName,
		LineStart:    p.LineStart,
		LineEnd:      p.LineEnd,
	}
}
