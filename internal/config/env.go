package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	EmbedModel   string
	JWTSecret    string
	Port         string

	// Ingestion pipeline tuning.
	ChunkSize        int // max runes per segment
	ChunkOverlap     int // runes shared between consecutive segments
	EmbedBatchSize   int // texts per embedding request
	EmbedConcurrency int // embedding batches in flight at once
	EmbedMaxRetries  int // attempts per batch before giving up
	EmbedDim         int // embedding vector dimension
	QueueSize        int // buffered job queue capacity
	WorkerCount      int // pipeline worker pool size

	// Signed URL validity in seconds.
	UploadURLExpiry   int
	DownloadURLExpiry int
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "paperbase-docs"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		Port:         getEnv("PORT", "8080"),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 2000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedMaxRetries:  getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedDim:         getEnvInt("EMBED_DIM", 768),
		QueueSize:        getEnvInt("QUEUE_SIZE", 64),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),

		UploadURLExpiry:   getEnvInt("UPLOAD_URL_EXPIRY", 300),
		DownloadURLExpiry: getEnvInt("DOWNLOAD_URL_EXPIRY", 3600),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		log.Fatalf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
