package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Vector index backends.
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
	VectorBackendMemory   = "memory"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docchat-files"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	// Base URL used to build file_url; defaults to endpoint/bucket.
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`

	OpenAIAPIKey         string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel       string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions  int           `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingBatchSize   int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"100"`
	EmbeddingConcurrency int           `envconfig:"EMBEDDING_CONCURRENCY" default:"4"`
	EmbeddingRPS         float64       `envconfig:"EMBEDDING_RPS" default:"5"`
	ChatModel            string        `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ChatTemperature      float32       `envconfig:"CHAT_TEMPERATURE" default:"0.2"`
	ChatMaxTokens        int           `envconfig:"CHAT_MAX_TOKENS" default:"512"`
	SynthesisTimeout     time.Duration `envconfig:"SYNTHESIS_TIMEOUT" default:"60s"`

	VectorBackend         string        `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	VectorCollection      string        `envconfig:"VECTOR_COLLECTION" default:"document_chunks"`
	VectorConnectAttempts int           `envconfig:"VECTOR_CONNECT_ATTEMPTS" default:"3"`
	VectorConnectBackoff  time.Duration `envconfig:"VECTOR_CONNECT_BACKOFF" default:"1s"`
	VectorTimeout         time.Duration `envconfig:"VECTOR_TIMEOUT" default:"30s"`
	QdrantURL             string        `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey          string        `envconfig:"QDRANT_API_KEY"`

	ChunkSize     int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"200"`
	RetrievalK    int `envconfig:"RETRIEVAL_K" default:"5"`
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"5"`

	PdfToTextPath       string        `envconfig:"PDFTOTEXT_PATH" default:"pdftotext"`
	CleanupPollInterval time.Duration `envconfig:"CLEANUP_POLL_INTERVAL" default:"30s"`

	// Bootstrap: create an initial user and API token on startup
	InitUserEmail string `envconfig:"INIT_USER_EMAIL"`
	InitUserName  string `envconfig:"INIT_USER_NAME" default:"admin"`
	InitAPIToken  string `envconfig:"INIT_API_TOKEN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case VectorBackendPgvector, VectorBackendQdrant, VectorBackendMemory:
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorBackend)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size %d, overlap %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// HasOpenAI reports whether an embeddings/chat endpoint is configured. A
// self-hosted OpenAI-compatible server may need only a base URL.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}
