package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"

	"dexfren/backend/features/job"
	"dexfren/backend/features/query"
	"dexfren/backend/features/reindex"
	"dexfren/backend/features/stats"
	"dexfren/backend/internal/cache"
	"dexfren/backend/internal/config"
	"dexfren/backend/internal/index"
	"dexfren/backend/internal/ingest"
	"dexfren/backend/internal/loader"
	"dexfren/backend/internal/middleware"
	"dexfren/backend/internal/retrieval"
	"dexfren/backend/internal/text"
	"dexfren/backend/internal/tracker"
	"dexfren/backend/internal/worker"
)

// reindexMsgTimeout bounds a single reindex run. nsqd must allow it
// (--max-msg-timeout defaults to 15m).
const reindexMsgTimeout = 10 * time.Minute

// catalogRefreshInterval is how often an API-only process reloads the
// catalog from source configs.
const catalogRefreshInterval = time.Minute

// rebuildCooldown limits how often an uninitialized index queues a rebuild.
const rebuildCooldown = time.Minute

type App struct {
	Handler  http.Handler
	Pipeline *ingest.Pipeline
	Ranker   *retrieval.Ranker
	Store    *index.Store
	Cache    *cache.Cache
	Jobs     *job.Service
	Reindex  *worker.ReindexConsumer

	cfg     *config.Config
	pub     worker.Publisher
	closers []io.Closer
}

func New(
	cfg *config.Config,
	db *sql.DB,
	backend index.Backend,
	embedder index.Embedder,
	pub worker.Publisher,
	logger *slog.Logger,
) (*App, error) {
	splitter, err := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	store := index.NewStore(backend, embedder, cfg.IndexBatchSize)
	catalog := retrieval.NewCatalog()

	queryCache, err := cache.New(cfg.CacheSize, cfg.CacheTTL(), retrieval.SimilaritySearch(store, retrieval.DefaultNamespaces))
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	a := &App{cfg: cfg, pub: pub, Store: store, Cache: queryCache}

	queryLogger, closer, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	} else {
		a.closers = append(a.closers, closer)
	}

	trigger := &rebuildTrigger{pub: pub, cooldown: rebuildCooldown}
	a.Ranker = retrieval.NewRanker(catalog, queryCache,
		retrieval.WithMaxResults(cfg.RankMaxResults),
		retrieval.WithK(cfg.SimilarityK),
		retrieval.WithQueryLogger(queryLogger),
		retrieval.WithNotReadyHook(trigger.fire),
	)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	a.Jobs = job.NewService(jobRepo, pub, logger)
	jobHandler := job.NewHandler(a.Jobs)

	// Ingestion
	var fetcherOpts []loader.FetcherOption
	if cfg.YouTubeAPIKey != "" {
		fetcherOpts = append(fetcherOpts, loader.WithDataAPI(cfg.YouTubeAPIKey, ""))
	}
	scraper := loader.NewScraper(cfg.HTTPTimeout(), float64(cfg.ScrapeRatePerSecond))
	sources := ingest.Sources{
		Videos:   loader.NewVideoLoader(cfg.VideosPath(), loader.NewVideoFetcher(cfg.HTTPTimeout(), fetcherOpts...)),
		Docs:     loader.NewDocsLoader(cfg.DocsPath(), scraper),
		Platform: loader.NewPlatformLoader(cfg.PlatformPath(), scraper),
		PDFs:     loader.NewPDFLoader(cfg.PDFDir),
	}
	a.Pipeline = ingest.NewPipeline(
		store,
		ingest.NewNormalizer(splitter),
		sources,
		tracker.New(cfg.HashRegistryPath),
		tracker.NewProcessedFiles(cfg.ProcessedFilesPath),
		catalog,
		ingest.WithCache(queryCache),
		ingest.WithFailureRecorder(a.Jobs),
	)
	a.Reindex = worker.NewReindexConsumer(a.Pipeline, reindexMsgTimeout)

	queryHandler := query.NewHandler(a.Ranker)
	reindexHandler := reindex.NewHandler(pub)
	statsHandler := stats.NewHandler(jobRepo, store, catalog, queryCache)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /query", middleware.CorrelationID(middleware.CORS(queryHandler.Query)))
	mux.Handle("POST /reindex", middleware.CorrelationID(middleware.CORS(reindexHandler.Trigger)))
	mux.Handle("GET /stats", middleware.CorrelationID(middleware.CORS(statsHandler.GetStats)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(middleware.CORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(middleware.CORS(jobHandler.Retry)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = mux
	return a, nil
}

// Close releases files opened by New.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	a.Pipeline.WarmCatalog(ctx)

	if a.cfg.EnableWorker {
		if err := a.StartWorker(ctx); err != nil {
			return err
		}
	} else {
		// Pipeline runs happen in another process, so follow the configs.
		go a.refreshCatalog(ctx, catalogRefreshInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartWorker consumes reindex tasks and starts the scheduler and PDF
// watcher. Everything stops when ctx is done. Run warms the catalog first.
func (a *App) StartWorker(ctx context.Context) error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MsgTimeout = reindexMsgTimeout

	consumer, err := nsq.NewConsumer(config.TopicReindex, config.ChannelReindex, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddHandler(a.Reindex)

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		return fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("reindex consumer connected", "topic", config.TopicReindex)

	go func() {
		<-ctx.Done()
		consumer.Stop()
	}()

	go worker.NewScheduler(a.pub, a.cfg.ReindexInterval()).Run(ctx)

	if a.cfg.WatchPDFDir {
		if err := worker.NewPDFWatcher(a.cfg.PDFDir, a.pub, worker.DefaultDebounce).Start(ctx); err != nil {
			slog.Warn("pdf watcher disabled", "dir", a.cfg.PDFDir, "error", err)
		}
	}

	// Update falls back to a full build when no index exists yet.
	if err := worker.PublishReindex(middleware.NewCorrelationID(ctx), a.pub, worker.ModeIncremental, "startup"); err != nil {
		slog.Warn("failed to queue startup reindex", "error", err)
	}
	return nil
}

func (a *App) refreshCatalog(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Pipeline.WarmCatalog(ctx)
		}
	}
}

// rebuildTrigger queues a full rebuild when a query hits an empty index,
// at most once per cooldown.
type rebuildTrigger struct {
	mu       sync.Mutex
	pub      worker.Publisher
	cooldown time.Duration
	last     time.Time
}

func (t *rebuildTrigger) fire(ctx context.Context) {
	t.mu.Lock()
	if !t.last.IsZero() && time.Since(t.last) < t.cooldown {
		t.mu.Unlock()
		return
	}
	t.last = time.Now()
	t.mu.Unlock()

	if err := worker.PublishReindex(ctx, t.pub, worker.ModeFull, "index not initialized"); err != nil {
		slog.WarnContext(ctx, "failed to queue rebuild", "error", err)
	}
}
