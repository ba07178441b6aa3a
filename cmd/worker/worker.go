package main

import (
	"context"
	"log"
	"time"

	"ai-learning-platform/internal/ai"
	"ai-learning-platform/internal/config"
	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/queue"
	"ai-learning-platform/internal/search"
	"ai-learning-platform/internal/telemetry"
	"ai-learning-platform/services"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("ai-learning-platform-worker", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Embedding provider; runs on the deterministic fallback without a key.
	provider, err := ai.NewProvider(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedding provider:", err)
	}
	defer provider.Close()

	vectors := search.NewQdrantIndex(cfg)
	if err := vectors.EnsureReady(context.Background()); err != nil {
		log.Fatal("Failed to prepare vector index:", err)
	}
	keywords := search.NewKeywordIndex(db)

	store := services.NewContentStore(db)
	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize, cfg.CodeChunkLines, cfg.CodeChunkOverlap)
	cache := services.NewSearchCacheService(redisClient, 5*time.Minute)
	indexer := services.NewIndexerService(store, chunker, provider, vectors, keywords, cache, metrics, cfg.IndexWorkers)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20, // Process 20 tasks concurrently
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(indexer, store)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexContent, processor.HandleIndexContent)
	mux.HandleFunc(queue.TaskReindexContent, processor.HandleReindexContent)

	// Nightly sweep repairs documents whose chunk rows went missing.
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Cron(cfg.ReindexCron).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		repaired, err := indexer.ReindexSweep(ctx, 100)
		if err != nil {
			logger.Error("Reindex sweep failed", "error", err)
			return
		}
		logger.Info("Reindex sweep finished", "repaired", repaired)
	}); err != nil {
		log.Fatal("Failed to schedule reindex sweep:", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	logger.Info("Starting worker",
		"concurrency", 20,
		"queues", "critical(6) default(3) low(1)",
		"redis", redisOpt.Addr,
		"reindex_cron", cfg.ReindexCron,
	)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
