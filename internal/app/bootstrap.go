package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"dexfren/backend/internal/adapter/gemini"
	"dexfren/backend/internal/adapter/openai"
	wstore "dexfren/backend/internal/adapter/weaviate"
	"dexfren/backend/internal/config"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/index/memory"
)

type Dependencies struct {
	DB          *sql.DB
	Backend     index.Backend
	Embedder    index.Embedder
	NSQProducer *nsq.Producer

	closers []io.Closer
}

// Close releases everything Bootstrap opened.
func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close dependency", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = Retry(ctx, cfg.BootstrapRetryAttempts, cfg.RetryDelay(), func() error { return db.PingContext(ctx) })
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if err := Migrate(db, cfg.MigrationPath); err != nil {
		db.Close()
		return nil, err
	}

	deps := &Dependencies{DB: db}

	deps.Backend, err = OpenBackend(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	embedder, closer, err := NewEmbedder(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Embedder = embedder
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)
	deps.NSQProducer = producer

	createTopics(cfg.NSQDHTTP)

	return deps, nil
}

func Migrate(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

// OpenBackend connects the configured vector index backend.
func OpenBackend(ctx context.Context, cfg *config.Config) (index.Backend, error) {
	switch cfg.IndexBackend {
	case config.BackendMemory:
		b, err := memory.Open(cfg.IndexDir)
		if err != nil {
			return nil, fmt.Errorf("open memory index: %w", err)
		}
		return b, nil
	case config.BackendWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		store := wstore.NewStore(client)
		if err := EnsureSchemaWithRetry(ctx, store, cfg.BootstrapRetryAttempts, cfg.RetryDelay()); err != nil {
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: INDEX_BACKEND %q", config.ErrInvalidValue, cfg.IndexBackend)
	}
}

// NewEmbedder builds the configured embedding client. The closer is nil for
// clients that hold no connection.
func NewEmbedder(ctx context.Context, cfg *config.Config) (index.Embedder, io.Closer, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		e, err := openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	case config.ProviderGemini:
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	default:
		return nil, nil, fmt.Errorf("%w: EMBEDDING_PROVIDER %q", config.ErrInvalidValue, cfg.EmbeddingProvider)
	}
}

func createTopics(nsqdHTTP string) {
	if nsqdHTTP == "" {
		return
	}
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicReindex)
	}()
}

type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// EnsureSchemaWithRetry delegates schema check to a helper with retry logic.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	return Retry(ctx, attempts, delay, func() error { return store.EnsureSchema(ctx) })
}

// Retry calls fn up to attempts times, sleeping delay between failures, and
// returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			slog.WarnContext(ctx, "dependency not ready, retrying", "attempt", i+1, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}
