package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendWeaviate = "weaviate"
	BackendMemory   = "memory"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"dexfren"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"dexfren"`

	IndexBackend   string `envconfig:"INDEX_BACKEND" default:"weaviate"`
	IndexDir       string `envconfig:"INDEX_DIR" default:"data/index"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	YouTubeAPIKey     string `envconfig:"YOUTUBE_API_KEY"`

	// Sources
	PDFDir             string `envconfig:"PDF_DIR" default:"data/pdfs"`
	ConfigDir          string `envconfig:"CONFIG_DIR" default:"config"`
	HashRegistryPath   string `envconfig:"HASH_REGISTRY_PATH" default:"data/file_hashes.json"`
	ProcessedFilesPath string `envconfig:"PROCESSED_FILES_PATH" default:"data/processed_files.json"`

	// Ingestion
	ChunkSize           int  `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap        int  `envconfig:"CHUNK_OVERLAP" default:"200"`
	IndexBatchSize      int  `envconfig:"INDEX_BATCH_SIZE" default:"50"`
	HTTPTimeoutSeconds  int  `envconfig:"HTTP_TIMEOUT_SECONDS" default:"15"`
	ScrapeRatePerSecond int  `envconfig:"SCRAPE_RATE_PER_SECOND" default:"2"`
	ReindexIntervalMin  int  `envconfig:"REINDEX_INTERVAL_MINUTES" default:"60"`
	EnableWorker        bool `envconfig:"ENABLE_WORKER" default:"true"`
	WatchPDFDir         bool `envconfig:"WATCH_PDF_DIR" default:"true"`

	// Retrieval
	CacheSize       int `envconfig:"CACHE_SIZE" default:"100"`
	CacheTTLSeconds int `envconfig:"CACHE_TTL_SECONDS" default:"3600"`
	RankMaxResults  int `envconfig:"RANK_MAX_RESULTS" default:"10"`
	SimilarityK     int `envconfig:"SIMILARITY_K" default:"5"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env, so load errors are ignored.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "..", ".env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingRequired)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER %q", ErrInvalidValue, c.EmbeddingProvider)
	}

	switch c.IndexBackend {
	case BackendWeaviate, BackendMemory:
	default:
		return fmt.Errorf("%w: INDEX_BACKEND %q", ErrInvalidValue, c.IndexBackend)
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be below CHUNK_SIZE (%d)", ErrInvalidValue, c.ChunkOverlap, c.ChunkSize)
	}
	if c.IndexBatchSize <= 0 {
		return fmt.Errorf("%w: INDEX_BATCH_SIZE", ErrInvalidValue)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("%w: CACHE_SIZE", ErrInvalidValue)
	}
	return nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) ReindexInterval() time.Duration {
	return time.Duration(c.ReindexIntervalMin) * time.Minute
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.BootstrapRetryDelaySeconds) * time.Second
}

// Source config documents live side by side in ConfigDir.
func (c *Config) VideosPath() string   { return filepath.Join(c.ConfigDir, "youtube_videos.json") }
func (c *Config) DocsPath() string     { return filepath.Join(c.ConfigDir, "documentation_urls.json") }
func (c *Config) PlatformPath() string { return filepath.Join(c.ConfigDir, "platform_urls.json") }

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
