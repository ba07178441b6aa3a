package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"ai-learning-platform/internal/config"
	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// EmbedMode selects the task type the backend optimizes the vector for.
// The mode is also mixed into the fallback hash, so a query and a document
// with identical text still embed differently.
type EmbedMode string

const (
	ModeDocument EmbedMode = "document"
	ModeQuery    EmbedMode = "query"
)

// Provider produces embedding vectors. The primary backend is Google
// Generative AI (text-embedding-004); when the backend is unavailable the
// provider switches to the deterministic fallback so indexing and search
// keep functioning. Without an API key every call is served by the fallback.
type Provider struct {
	cfg     *config.Config
	client  *genai.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *telemetry.Metrics
}

func NewProvider(cfg *config.Config, metrics *telemetry.Metrics) (*Provider, error) {
	p := &Provider{
		cfg:     cfg,
		metrics: metrics,
	}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		p.client = client
	} else {
		logger.Warn("No embeddings API key configured, running on deterministic fallback vectors")
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingsAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	// RPM limit with some buffer
	rpm := cfg.EmbedRPM
	if rpm <= 0 {
		rpm = 60
	}
	p.limiter = rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), rpm/10+1)

	return p, nil
}

// Dimension is the width of every vector the provider emits, backend or
// fallback alike.
func (p *Provider) Dimension() int {
	return p.cfg.VectorDimensions
}

func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Embed returns a vector for the text. Backend failures of the unavailable
// class degrade to the deterministic fallback; any other error propagates.
func (p *Provider) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	text = truncateText(text, p.cfg.MaxEmbedChars)

	if p.client == nil {
		return p.fallback(text, mode, "no_api_key"), nil
	}

	vec, err := p.embedRemote(ctx, text, mode)
	if err != nil {
		var unavailable *BackendUnavailableError
		if errors.As(err, &unavailable) {
			logger.Warn("Embedding backend unavailable, using fallback vector",
				"reason", unavailable.Reason, "mode", string(mode))
			return p.fallback(text, mode, unavailable.Reason), nil
		}
		return nil, err
	}

	return vec, nil
}

// EmbedBatch embeds texts in backend batches of at most EmbedBatchSize.
// When a whole batch fails with an unavailable backend, each of its items is
// served by the fallback instead; the call never partially fails.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	if p.client == nil {
		for i, text := range texts {
			vectors[i] = p.fallback(truncateText(text, p.cfg.MaxEmbedChars), mode, "no_api_key")
		}
		return vectors, nil
	}

	batchSize := p.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[start:end]
		results, err := p.embedRemoteBatch(ctx, batch, mode)
		if err != nil {
			var unavailable *BackendUnavailableError
			if !errors.As(err, &unavailable) {
				return nil, err
			}
			logger.Warn("Embedding batch failed, falling back per item",
				"reason", unavailable.Reason, "batch_size", len(batch))
			for i, text := range batch {
				vectors[start+i] = p.fallback(truncateText(text, p.cfg.MaxEmbedChars), mode, unavailable.Reason)
			}
			continue
		}
		copy(vectors[start:end], results)
	}

	return vectors, nil
}

func (p *Provider) embedRemote(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	tracer := otel.Tracer("embedding-provider")
	ctx, span := tracer.Start(ctx, "embeddings.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embeddings.model", p.cfg.GoogleEmbeddingsModel),
		attribute.String("embeddings.mode", string(mode)),
		attribute.Int("embeddings.text_chars", len(text)),
	)

	if err := p.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("embeddings.rate_limited", true))
		return nil, err
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.EmbedTimeoutSeconds)*time.Second)
		defer cancel()

		model := p.client.EmbeddingModel(p.cfg.GoogleEmbeddingsModel)
		model.TaskType = taskTypeFor(mode)

		resp, err := model.EmbedContent(callCtx, genai.Text(text))
		if err != nil && isTransient(err) {
			// One retry covers backend cold starts.
			time.Sleep(500 * time.Millisecond)
			resp, err = model.EmbedContent(callCtx, genai.Text(text))
		}
		if err != nil {
			span.SetAttributes(attribute.String("embeddings.error", err.Error()))
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		return nil, p.classify(err, span)
	}

	span.SetAttributes(attribute.Bool("embeddings.success", true))
	return result.([]float32), nil
}

func (p *Provider) embedRemoteBatch(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	tracer := otel.Tracer("embedding-provider")
	ctx, span := tracer.Start(ctx, "embeddings.embed_batch")
	defer span.End()

	span.SetAttributes(
		attribute.String("embeddings.model", p.cfg.GoogleEmbeddingsModel),
		attribute.Int("embeddings.batch_size", len(texts)),
	)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.EmbedTimeoutSeconds)*time.Second)
		defer cancel()

		model := p.client.EmbeddingModel(p.cfg.GoogleEmbeddingsModel)
		model.TaskType = taskTypeFor(mode)

		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(truncateText(text, p.cfg.MaxEmbedChars)))
		}

		resp, err := model.BatchEmbedContents(callCtx, batch)
		if err != nil {
			span.SetAttributes(attribute.String("embeddings.error", err.Error()))
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding batch size mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
		}

		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			vectors[i] = emb.Values
		}
		return vectors, nil
	})
	if err != nil {
		return nil, p.classify(err, span)
	}

	span.SetAttributes(attribute.Bool("embeddings.success", true))
	return result.([][]float32), nil
}

func (p *Provider) fallback(text string, mode EmbedMode, reason string) []float32 {
	if p.metrics != nil {
		p.metrics.RecordEmbeddingFallback(reason)
	}
	return FallbackEmbedding(text, mode, p.cfg.VectorDimensions)
}

// classify maps breaker and upstream failures onto BackendUnavailableError.
// Everything else stays as-is so callers never fall back on programming or
// validation errors.
func (p *Provider) classify(err error, span trace.Span) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		span.SetAttributes(attribute.Bool("embeddings.circuit_breaker_open", true))
		return &BackendUnavailableError{Backend: "gemini", Reason: "circuit_open", Err: err}
	case isUnauthorized(err):
		// A bad or revoked key must degrade to fallback vectors, not stall
		// indexing and search.
		span.SetAttributes(attribute.Bool("embeddings.unauthorized", true))
		return &BackendUnavailableError{Backend: "gemini", Reason: "unauthorized", Err: err}
	case isTransient(err):
		return &BackendUnavailableError{Backend: "gemini", Reason: "transient", Err: err}
	default:
		return err
	}
}

func isUnauthorized(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 401 || gerr.Code == 403
	}
	return false
}

func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func taskTypeFor(mode EmbedMode) genai.TaskType {
	if mode == ModeQuery {
		return genai.TaskTypeRetrievalQuery
	}
	return genai.TaskTypeRetrievalDocument
}

// truncateText clamps input length without splitting a UTF-8 sequence.
func truncateText(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
