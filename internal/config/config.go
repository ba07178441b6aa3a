package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis Configuration (cache + task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Chunking
	ChunkSize        int
	ChunkOverlap     int
	MinChunkSize     int
	CodeChunkLines   int
	CodeChunkOverlap int

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default)
	GeminiAPIKey          string
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	VectorDimensions      int
	MaxEmbedChars         int
	EmbedBatchSize        int
	EmbedTimeoutSeconds   int
	EmbedRPM              int

	// Vector index (Qdrant)
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Retrieval defaults
	SearchTimeoutSeconds int
	DefaultTopK          int
	DefaultThreshold     float64

	// Indexing
	IndexWorkers int
	ReindexCron  string

	// Rate limiting (HTTP)
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/ai_learning"),
		DBName:      getEnv("DB_NAME", "ai_learning"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize:     getEnvInt("MIN_CHUNK_SIZE", 100),
		CodeChunkLines:   getEnvInt("CODE_CHUNK_LINES", 50),
		CodeChunkOverlap: getEnvInt("CODE_CHUNK_OVERLAP", 10),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		MaxEmbedChars:         getEnvInt("MAX_EMBED_CHARS", 8000),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 32),
		EmbedTimeoutSeconds:   getEnvInt("EMBED_TIMEOUT", 30),
		EmbedRPM:              getEnvInt("EMBED_RPM", 100),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "content_chunks"),

		SearchTimeoutSeconds: getEnvInt("SEARCH_TIMEOUT", 15),
		DefaultTopK:          getEnvInt("DEFAULT_TOP_K", 10),
		DefaultThreshold:     getEnvFloat64("DEFAULT_THRESHOLD", 0.4),

		IndexWorkers: getEnvInt("INDEX_WORKERS", 4),
		ReindexCron:  getEnv("REINDEX_CRON", "0 3 * * *"),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// GEMINI_API_KEY is intentionally not required: without it the embedding
	// provider runs entirely on the deterministic fallback.
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	if cfg.VectorDimensions <= 0 {
		return nil, fmt.Errorf("VECTOR_DIM must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
