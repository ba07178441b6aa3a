package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-learning-platform/internal/ai"
	"ai-learning-platform/internal/config"
	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/search"
	"ai-learning-platform/internal/telemetry"
	"ai-learning-platform/middleware"
	"ai-learning-platform/routes"
	"ai-learning-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("ai-learning-platform", cfg.OTLPEndpoint)
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

	// Redis backs the search cache and the task queue.
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	// Embedding provider; runs on the deterministic fallback without a key.
	provider, err := ai.NewProvider(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embedding provider:", err)
	}
	defer provider.Close()

	// Index collaborators
	vectors := search.NewQdrantIndex(cfg)
	if err := vectors.EnsureReady(context.Background()); err != nil {
		log.Fatal("Failed to prepare vector index:", err)
	}
	keywords := search.NewKeywordIndex(db)

	// Services
	store := services.NewContentStore(db)
	chunker := services.NewChunkingService(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize, cfg.CodeChunkLines, cfg.CodeChunkOverlap)
	cache := services.NewSearchCacheService(redisClient, 5*time.Minute)
	indexer := services.NewIndexerService(store, chunker, provider, vectors, keywords, cache, metrics, cfg.IndexWorkers)
	retriever := services.NewRetrieverService(provider, vectors, keywords, cache, metrics,
		cfg.DefaultTopK, cfg.DefaultThreshold, time.Duration(cfg.SearchTimeoutSeconds)*time.Second)
	grounding := services.NewGroundingService(metrics)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupSearchRoutes(router, retriever, grounding)
	routes.SetupContentRoutes(router, store, indexer, asynqClient)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
