package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every tunable for the backend. It is built once in main and
// passed into component constructors; components never read the environment
// themselves.
type Config struct {
	// Server
	Port string

	// API keys
	GeminiAPIKey       string
	FriendliToken      string
	FriendliBaseURL    string
	FriendliEndpointID string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK           int
	ScoreThreshold float64

	// Embedding
	EmbeddingModel     string
	EmbeddingDimension int

	// LLM routing: task type -> provider name
	DefaultProvider string
	TaskRouting     map[string]string

	// Persistence
	StoreBackend string // "postgres" or "local"
	DatabaseURL  string
	LocalDataDir string

	// Raw document archive
	ArchiveBackend string // "local" or "s3"
	ArchiveDir     string
	S3Bucket       string
	S3Region       string
}

// Load builds a Config from the environment. A .env file in the working
// directory or the project root is honored when present, matching how the
// server has always been run in development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		FriendliToken:      os.Getenv("FRIENDLI_TOKEN"),
		FriendliBaseURL:    getEnv("FRIENDLI_BASE_URL", "https://api.friendli.ai/dedicated/v1"),
		FriendliEndpointID: os.Getenv("FRIENDLI_ENDPOINT_ID"),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 200),
		TopK:               getEnvInt("RETRIEVAL_TOP_K", 20),
		ScoreThreshold:     getEnvFloat("RETRIEVAL_SCORE_THRESHOLD", 0.7),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "models/gemini-embedding-001"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 768),
		DefaultProvider:    getEnv("DEFAULT_LLM_PROVIDER", "gemini"),
		TaskRouting: map[string]string{
			"long_context_analysis": getEnv("ROUTE_LONG_CONTEXT", "gemini"),
			"quick_analysis":        getEnv("ROUTE_QUICK_ANALYSIS", "friendli"),
		},
		StoreBackend:   getEnv("STORE_BACKEND", "local"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LocalDataDir:   getEnv("LOCAL_DATA_DIR", "./data/cache"),
		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "local"),
		ArchiveDir:     getEnv("ARCHIVE_DIR", "./data/archive"),
		S3Bucket:       os.Getenv("AWS_S3_BUCKET"),
		S3Region:       getEnv("AWS_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations that would only fail later at
// chunking or search time
func (c *Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid config: chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK < 0 {
		return fmt.Errorf("invalid config: top K must not be negative, got %d", c.TopK)
	}
	if c.ScoreThreshold < -1 || c.ScoreThreshold > 1 {
		return fmt.Errorf("invalid config: score threshold %f outside [-1, 1]", c.ScoreThreshold)
	}
	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("invalid config: DATABASE_URL is required for the postgres store backend")
	}
	if c.ArchiveBackend == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("invalid config: AWS_S3_BUCKET is required for the s3 archive backend")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid value %q for %s, using default %d", v, key, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: invalid value %q for %s, using default %f", v, key, fallback)
		return fallback
	}
	return f
}
