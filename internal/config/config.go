package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Vector store backends
const (
	VectorStorePinecone = "pinecone"
	VectorStorePgvector = "pgvector"
	VectorStoreMemory   = "memory"
)

// Session store backends
const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

// Reranker backends
const (
	RerankerLLM  = "llm"
	RerankerHTTP = "http"
	RerankerNone = "none"
)

type Config struct {
	Port           string   `envconfig:"PORT" default:"8080"`
	Debug          bool     `envconfig:"DEBUG" default:"false"`
	APIKeys        []string `envconfig:"API_KEYS"`
	MaxBodyBytes   int64    `envconfig:"MAX_BODY_BYTES" default:"26214400"`
	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"20"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	VisionModel         string `envconfig:"VISION_MODEL" default:"gpt-4o-mini"`

	VectorStore    string `envconfig:"VECTOR_STORE" default:"pinecone"`
	PineconeHost   string `envconfig:"PINECONE_HOST"`
	PineconeAPIKey string `envconfig:"PINECONE_API_KEY"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	SessionStore         string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionWindow        int           `envconfig:"SESSION_WINDOW" default:"20"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`

	EmbedCacheSize     int `envconfig:"EMBED_CACHE_SIZE" default:"1000"`
	EmbedMaxInputChars int `envconfig:"EMBED_MAX_INPUT_CHARS" default:"8000"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	RetrievalVariants int `envconfig:"RETRIEVAL_VARIANTS" default:"3"`
	RetrievalKInitial int `envconfig:"RETRIEVAL_K_INITIAL" default:"10"`
	RetrievalKFinal   int `envconfig:"RETRIEVAL_K_FINAL" default:"5"`

	Reranker     string `envconfig:"RERANKER" default:"llm"`
	RerankURL    string `envconfig:"RERANK_URL"`
	RerankAPIKey string `envconfig:"RERANK_API_KEY"`
	RerankModel  string `envconfig:"RERANK_MODEL" default:"rerank-english-v3.0"`

	ParseWorkers int `envconfig:"PARSE_WORKERS" default:"5"`

	GoogleCredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ragsync-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SyncTargetsFile string        `envconfig:"SYNC_TARGETS_FILE"`
	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"1h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGSYNC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.VectorStore = strings.ToLower(strings.TrimSpace(cfg.VectorStore))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	cfg.Reranker = strings.ToLower(strings.TrimSpace(cfg.Reranker))

	if err := cfg.Validate(); err != nil {
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

// Validate checks that the selected backends have the settings they need.
func (c *Config) Validate() error {
	switch c.VectorStore {
	case VectorStorePinecone, VectorStoreMemory:
	case VectorStorePgvector:
		if !c.HasDatabase() {
			return fmt.Errorf("RAGSYNC_DATABASE_URL is required for vector store %q", c.VectorStore)
		}
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore)
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("RAGSYNC_DATABASE_URL is required for session store %q", c.SessionStore)
		}
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}

	switch c.Reranker {
	case RerankerLLM, RerankerNone:
	case RerankerHTTP:
		if c.RerankURL == "" {
			return fmt.Errorf("RAGSYNC_RERANK_URL is required for reranker %q", c.Reranker)
		}
	default:
		return fmt.Errorf("unknown reranker %q", c.Reranker)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.SessionWindow <= 0 {
		return fmt.Errorf("session window must be positive")
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasPinecone() bool {
	return c.PineconeHost != "" && c.PineconeAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// NeedsDatabase reports whether any configured backend lives in Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.VectorStore == VectorStorePgvector || c.SessionStore == SessionStorePostgres
}

// AuthEnabled reports whether API key authentication is enforced.
func (c *Config) AuthEnabled() bool {
	for _, k := range c.APIKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}
