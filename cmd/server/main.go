package main

import (
	"context"
	"log"
	"strings"

	"corpinsight-backend/cache"
	"corpinsight-backend/chunker"
	"corpinsight-backend/config"
	"corpinsight-backend/embedding"
	"corpinsight-backend/handlers"
	"corpinsight-backend/index"
	"corpinsight-backend/llm"
	"corpinsight-backend/retrieval"
	"corpinsight-backend/service"
	"corpinsight-backend/storage"
	"corpinsight-backend/store"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx := context.Background()

	// Persistence
	st, err := store.NewStore(ctx, store.Config{
		Backend:     store.Backend(cfg.StoreBackend),
		DatabaseURL: cfg.DatabaseURL,
		LocalDir:    cfg.LocalDataDir,
	})
	if err != nil {
		log.Fatal("Failed to initialize store:", err)
	}
	defer st.Close()
	log.Printf("Store initialized (%s backend)", cfg.StoreBackend)

	archive, err := storage.NewArchive(storage.ArchiveConfig{
		Type:      storage.ArchiveType(cfg.ArchiveBackend),
		LocalPath: cfg.ArchiveDir,
		S3Bucket:  cfg.S3Bucket,
		S3Region:  cfg.S3Region,
	})
	if err != nil {
		log.Fatal("Failed to initialize archive:", err)
	}
	log.Printf("Archive initialized (%s backend)", cfg.ArchiveBackend)

	// Chunking and embedding
	ck, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Failed to initialize chunker:", err)
	}

	embedder, err := embedding.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}

	ix, err := index.New(cfg.EmbeddingDimension)
	if err != nil {
		log.Fatal("Failed to initialize index:", err)
	}

	// Document cache, replayed from the store before serving
	dc, err := cache.New(
		cache.WithChunker(ck),
		cache.WithEmbedder(embedder),
		cache.WithIndex(ix),
		cache.WithStore(st),
		cache.WithArchive(archive),
	)
	if err != nil {
		log.Fatal("Failed to initialize cache:", err)
	}
	if err := dc.LoadFromStore(ctx); err != nil {
		log.Fatal("Failed to load cache from store:", err)
	}

	// Retrieval
	engine, err := retrieval.New(embedder, ix,
		retrieval.WithTopK(cfg.TopK),
		retrieval.WithThreshold(cfg.ScoreThreshold),
	)
	if err != nil {
		log.Fatal("Failed to initialize retrieval engine:", err)
	}

	// Generation providers
	router := llm.NewRouter()
	gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal("Failed to initialize Gemini provider:", err)
	}
	defer gemini.Close()
	router.Register(gemini, cfg.DefaultProvider == gemini.Name())
	log.Println("Gemini provider registered")

	if cfg.FriendliToken != "" && cfg.FriendliEndpointID != "" {
		friendli, err := llm.NewFriendliProvider(cfg.FriendliToken, cfg.FriendliEndpointID,
			llm.FriendliWithEndpoint(cfg.FriendliBaseURL+"/chat/completions"))
		if err != nil {
			log.Fatal("Failed to initialize Friendli provider:", err)
		}
		router.Register(friendli, cfg.DefaultProvider == friendli.Name())
		log.Println("Friendli provider registered")
	}

	for task, provider := range cfg.TaskRouting {
		router.SetTaskRoute(llm.Task(task), provider)
	}

	// Analysis service. External document sources are not wired here; the
	// pipeline serves cached and submitted documents, and new documents
	// arrive through POST /api/documents.
	analysisService, err := service.NewAnalysisService(
		service.WithCache(dc),
		service.WithRetriever(engine),
		service.WithRouter(router),
		service.WithResolver(service.ResolverFunc(func(_ context.Context, name string) (string, error) {
			return strings.TrimSpace(name), nil
		})),
	)
	if err != nil {
		log.Fatal("Failed to initialize analysis service:", err)
	}

	// Handlers
	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	cacheHandler := handlers.NewCacheHandler(dc)

	// Setup Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.POST("/analyze", analysisHandler.Analyze)
		api.POST("/documents", analysisHandler.SubmitDocument)

		api.GET("/cache/stats", cacheHandler.Stats)
		api.POST("/cache/reset", cacheHandler.Reset)
		api.GET("/cache/check", cacheHandler.Check)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
