package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	SearchDuration      metric.Float64Histogram
	ChunksIndexed       metric.Int64Counter
	EmbeddingFallbacks  metric.Int64Counter
	GroundingScore      metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
	IndexingDuration    metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ai-learning-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Retrieval duration in seconds, per search mode"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"indexing.chunks.total",
		metric.WithDescription("Total chunks written to the indexes"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFallbacks, err := meter.Int64Counter(
		"embedding.fallbacks.total",
		metric.WithDescription("Embedding calls served by the deterministic fallback"),
	)
	if err != nil {
		return nil, err
	}

	groundingScore, err := meter.Float64Histogram(
		"grounding.score",
		metric.WithDescription("Grounding score distribution over verified answers"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"indexing.duration",
		metric.WithDescription("End-to-end document indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		SearchDuration:      searchDuration,
		ChunksIndexed:       chunksIndexed,
		EmbeddingFallbacks:  embeddingFallbacks,
		GroundingScore:      groundingScore,
		CircuitBreakerState: circuitBreakerState,
		IndexingDuration:    indexingDuration,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSearch records retrieval latency per search mode (semantic, keyword, hybrid, code)
func (m *Metrics) RecordSearch(mode string, duration float64, degraded bool) {
	attrs := []attribute.KeyValue{
		attribute.String("search.mode", mode),
		attribute.Bool("search.degraded", degraded),
	}

	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChunksIndexed records chunks written during an indexing job
func (m *Metrics) RecordChunksIndexed(count int64, chunkType string) {
	attrs := []attribute.KeyValue{
		attribute.String("chunk.type", chunkType),
	}

	m.ChunksIndexed.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordEmbeddingFallback counts embedding requests served by the deterministic fallback
func (m *Metrics) RecordEmbeddingFallback(reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("fallback.reason", reason),
	}

	m.EmbeddingFallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordGroundingScore records the grounding score of a verified answer
func (m *Metrics) RecordGroundingScore(score float64, risk string) {
	attrs := []attribute.KeyValue{
		attribute.String("grounding.risk", risk),
	}

	m.GroundingScore.Record(context.Background(), score, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIndexing records end-to-end indexing job duration
func (m *Metrics) RecordIndexing(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("indexing.status", status),
	}

	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}
