package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ai-learning-platform/internal/logger"
	"ai-learning-platform/models"

	"github.com/redis/go-redis/v9"
)

// SearchCacheService caches ranked search results in Redis. A nil Redis
// client disables caching without changing retriever behavior.
type SearchCacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSearchCacheService(client *redis.Client, ttl time.Duration) *SearchCacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SearchCacheService{client: client, ttl: ttl}
}

// Key derives a stable cache key from everything that affects ranking.
func (sc *SearchCacheService) Key(mode, query string, k int, semanticWeight, keywordWeight float64, filters models.SearchFilters) string {
	raw := fmt.Sprintf("%s|%s|%d|%.4f|%.4f|%s|%s|%d|%s|%s",
		mode, query, k, semanticWeight, keywordWeight,
		filters.Category, filters.ContentType, filters.Week, filters.Language, filters.ChunkType)

	sum := sha256.Sum256([]byte(raw))
	return "search:" + hex.EncodeToString(sum[:16])
}

// Get returns cached candidates, or false on miss. Cache errors count as
// misses; search never fails because Redis is down.
func (sc *SearchCacheService) Get(ctx context.Context, key string) ([]models.SearchCandidate, bool) {
	if sc.client == nil {
		return nil, false
	}

	data, err := sc.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Search cache read failed", "error", err)
		}
		return nil, false
	}

	var results []models.SearchCandidate
	if err := json.Unmarshal(data, &results); err != nil {
		logger.Debug("Search cache entry corrupt, dropping", "key", key)
		sc.client.Del(ctx, key)
		return nil, false
	}

	return results, true
}

// Set stores candidates best-effort.
func (sc *SearchCacheService) Set(ctx context.Context, key string, results []models.SearchCandidate) {
	if sc.client == nil {
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := sc.client.Set(ctx, key, data, sc.ttl).Err(); err != nil {
		logger.Debug("Search cache write failed", "error", err)
	}
}

// InvalidateAll drops all cached search results; called after an indexing
// job changes the corpus.
func (sc *SearchCacheService) InvalidateAll(ctx context.Context) {
	if sc.client == nil {
		return
	}

	iter := sc.client.Scan(ctx, 0, "search:*", 200).Iterator()
	for iter.Next(ctx) {
		sc.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Debug("Search cache invalidation failed", "error", err)
	}
}
