package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ai-learning-platform/internal/config"
	"ai-learning-platform/models"
)

// QdrantIndex is a minimal REST client to Qdrant. It assumes cosine distance
// and creates the collection if missing.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewQdrantIndex(cfg *config.Config) *QdrantIndex {
	return &QdrantIndex{
		url:        cfg.QdrantURL,
		apiKey:     cfg.QdrantAPIKey,
		collection: cfg.QdrantCollection,
		dimension:  cfg.VectorDimensions,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// EnsureReady creates the collection if it does not exist. Qdrant returns
// 200 for an existing collection with the same schema.
func (q *QdrantIndex) EnsureReady(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	return q.putJSON(ctx, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body, nil)
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]map[string]any, len(points))
	for i, p := range points {
		qpoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}

	body := map[string]any{"points": qpoints}
	return q.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection), body, nil)
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        opts.TopK,
		"with_payload": true,
	}
	if opts.Threshold > 0 {
		req["score_threshold"] = opts.Threshold
	}
	if filter := buildFilter(opts.Filters); filter != nil {
		req["filter"] = filter
	}

	var resp struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload ChunkPayload `json:"payload"`
		} `json:"result"`
	}
	err := q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection), req, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{Score: r.Score, Payload: r.Payload})
	}
	return matches, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	return q.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.url, q.collection), body, nil)
}

// buildFilter maps metadata filters onto a Qdrant must-match filter. Returns
// nil when no filter is set.
func buildFilter(f models.SearchFilters) map[string]any {
	var must []map[string]any

	match := func(key string, value any) map[string]any {
		return map[string]any{"key": key, "match": map[string]any{"value": value}}
	}

	if f.Category != "" {
		must = append(must, match("document_category", f.Category))
	}
	if f.ContentType != "" {
		must = append(must, match("document_type", f.ContentType))
	}
	if f.Week != 0 {
		must = append(must, match("document_week", f.Week))
	}
	if f.Language != "" {
		must = append(must, match("language", f.Language))
	}
	if f.ChunkType != "" {
		must = append(must, match("chunk_type", f.ChunkType))
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (q *QdrantIndex) putJSON(ctx context.Context, url string, body, out any) error {
	return q.doJSON(ctx, http.MethodPut, url, body, out)
}

func (q *QdrantIndex) postJSON(ctx context.Context, url string, body, out any) error {
	return q.doJSON(ctx, http.MethodPost, url, body, out)
}

func (q *QdrantIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
