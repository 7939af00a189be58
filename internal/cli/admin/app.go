package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cloo-solutions/ragsync/internal/api/handlers"
	"github.com/cloo-solutions/ragsync/internal/api/middleware"
	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/database"
	"github.com/cloo-solutions/ragsync/internal/embedcache"
	"github.com/cloo-solutions/ragsync/internal/extract"
	"github.com/cloo-solutions/ragsync/internal/jobs"
	"github.com/cloo-solutions/ragsync/internal/openai"
	"github.com/cloo-solutions/ragsync/internal/repository"
	"github.com/cloo-solutions/ragsync/internal/rerank"
	"github.com/cloo-solutions/ragsync/internal/server"
	"github.com/cloo-solutions/ragsync/internal/service"
	"github.com/cloo-solutions/ragsync/internal/session"
	"github.com/cloo-solutions/ragsync/internal/source/drive"
	s3source "github.com/cloo-solutions/ragsync/internal/source/s3"
	"github.com/cloo-solutions/ragsync/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

const componentNone = "none"

// sessionBackend is a session store that can also drop idle sessions.
type sessionBackend interface {
	service.SessionStore
	jobs.SessionSweepStore
}

// App holds every wired component of the server process.
type App struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	store      service.VectorStore
	sessions   sessionBackend
	generator  service.Generator
	embeddings *service.EmbeddingService
	extractor  *extract.Pool

	syncer    *service.SyncService
	retriever *service.Retriever
	chat      *service.ChatService
	web       *service.WebIngestService

	newDrive handlers.DriveSourceFactory
	bucket   service.DocumentSource
	sources  map[string]service.DocumentSource

	components handlers.Components
}

// Build wires the backends selected by cfg. Optional providers that are not
// configured are left nil; the endpoints depending on them answer 503.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{cfg: cfg, sources: map[string]service.DocumentSource{}}

	if cfg.NeedsDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 10})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.pool = pool
		log.Println("connected to database")
	}

	var (
		embedder  service.EmbeddingClient
		describer extract.ImageDescriber
	)
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
			VisionModel:         cfg.VisionModel,
		})
		embedder = client
		describer = client
		app.generator = client
	} else {
		log.Println("openai: RAGSYNC_OPENAI_API_KEY not set, embeddings and chat are disabled")
	}

	cache, err := embedcache.New(embedcache.Config{
		Capacity:      cfg.EmbedCacheSize,
		MaxInputChars: cfg.EmbedMaxInputChars,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	app.embeddings = service.NewEmbeddingService(embedder, cache)

	if err := app.buildVectorStore(); err != nil {
		app.Close()
		return nil, err
	}
	app.buildSessions()
	reranker := app.buildReranker()

	app.extractor = extract.NewPool(cfg.ParseWorkers, describer)
	indexer := service.NewIndexer(app.store, app.embeddings)
	app.syncer = service.NewSyncService(app.store, indexer, app.extractor, service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})
	app.retriever = service.NewRetriever(app.store, app.embeddings, app.generator, reranker, service.RetrievalConfig{
		Variants: cfg.RetrievalVariants,
		KInitial: cfg.RetrievalKInitial,
		KFinal:   cfg.RetrievalKFinal,
	})
	app.chat = service.NewChatService(app.retriever, app.generator, app.sessions)
	app.web = service.NewWebIngestService(app.store, indexer)

	if err := app.buildSources(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.components.Embeddings = embedder != nil
	app.components.Generator = app.generator != nil

	return app, nil
}

func (a *App) buildVectorStore() error {
	switch a.cfg.VectorStore {
	case config.VectorStorePinecone:
		if !a.cfg.HasPinecone() {
			log.Println("pinecone: RAGSYNC_PINECONE_HOST or RAGSYNC_PINECONE_API_KEY not set, vector store disabled")
			a.components.VectorStore = componentNone
			return nil
		}
		client, err := vectorstore.NewPineconeClient(a.cfg.PineconeHost, a.cfg.PineconeAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create pinecone client: %w", err)
		}
		a.store = client
	case config.VectorStorePgvector:
		a.store = repository.NewVectorRepository(a.pool, a.cfg.EmbeddingDimensions)
	default:
		a.store = vectorstore.NewMemoryStore(a.cfg.EmbeddingDimensions)
	}
	a.components.VectorStore = a.cfg.VectorStore
	return nil
}

func (a *App) buildSessions() {
	if a.cfg.SessionStore == config.SessionStorePostgres {
		a.sessions = repository.NewSessionRepository(a.pool, a.cfg.SessionWindow)
	} else {
		a.sessions = session.NewMemoryStore(a.cfg.SessionWindow, a.cfg.SessionTTL)
	}
	a.components.Sessions = a.cfg.SessionStore
}

func (a *App) buildReranker() service.Reranker {
	switch a.cfg.Reranker {
	case config.RerankerHTTP:
		client, err := rerank.NewClient(rerank.Config{
			URL:    a.cfg.RerankURL,
			APIKey: a.cfg.RerankAPIKey,
			Model:  a.cfg.RerankModel,
		})
		if err != nil {
			log.Printf("rerank: %v, reranking disabled", err)
			break
		}
		a.components.Reranker = config.RerankerHTTP
		return client
	case config.RerankerLLM:
		if a.generator == nil {
			log.Println("rerank: llm reranker needs a chat model, reranking disabled")
			break
		}
		a.components.Reranker = config.RerankerLLM
		return service.NewLLMReranker(a.generator)
	}
	a.components.Reranker = componentNone
	return nil
}

func (a *App) buildSources(ctx context.Context) error {
	credentialsFile := a.cfg.GoogleCredentialsFile
	a.newDrive = func(ctx context.Context, accessToken string) (service.DocumentSource, error) {
		client, err := drive.New(ctx, drive.Config{AccessToken: accessToken, CredentialsFile: credentialsFile})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	a.components.Drive = true

	if credentialsFile != "" {
		client, err := drive.New(ctx, drive.Config{CredentialsFile: credentialsFile})
		if err != nil {
			return fmt.Errorf("failed to create drive client: %w", err)
		}
		a.sources[config.SourceDrive] = client
	}

	if a.cfg.HasS3() {
		client, err := s3source.NewClient(ctx, s3source.ClientConfig{
			Endpoint:        a.cfg.S3Endpoint,
			Region:          a.cfg.S3Region,
			AccessKeyID:     a.cfg.S3AccessKey,
			SecretAccessKey: a.cfg.S3SecretKey,
			Bucket:          a.cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		a.bucket = client
		a.sources[config.SourceS3] = client
		a.components.S3 = true
		log.Printf("s3: reading documents from bucket '%s'", a.cfg.S3Bucket)
	}

	return nil
}

// Router returns the HTTP handler serving the API.
func (a *App) Router() http.Handler {
	var validator middleware.AuthValidator
	if a.cfg.AuthEnabled() {
		validator = middleware.NewStaticKeys(a.cfg.APIKeys)
	} else {
		log.Println("auth: RAGSYNC_API_KEYS not set, API is open")
	}

	return server.NewRouter(server.RouterConfig{
		AuthValidator:  validator,
		RateLimiter:    middleware.NewRateLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst),
		MaxBodyBytes:   a.cfg.MaxBodyBytes,
		HealthHandler:  handlers.NewHealthHandler(a.components),
		ChatHandler:    handlers.NewChatHandler(a.chat),
		SearchHandler:  handlers.NewSearchHandler(a.retriever),
		SyncHandler:    handlers.NewSyncHandler(a.syncer, a.newDrive, a.bucket),
		IngestHandler:  handlers.NewIngestHandler(a.web),
		ParseHandler:   handlers.NewParseHandler(a.extractor),
		EmbedHandler:   handlers.NewEmbedHandler(a.embeddings),
		VectorsHandler: handlers.NewVectorsHandler(a.store),
	})
}

// SyncScheduler returns a processor that syncs every target against the
// configured sources.
func (a *App) SyncScheduler(targets []config.SyncTarget) *jobs.SyncScheduler {
	return jobs.NewSyncScheduler(a.syncer, a.sources, targets)
}

// Workers returns the background jobs to run alongside the server.
func (a *App) Workers() ([]*jobs.Worker, error) {
	var workers []*jobs.Worker
	if a.cfg.SessionTTL > 0 && a.cfg.SessionSweepInterval > 0 {
		workers = append(workers, jobs.NewWorker("sessions",
			jobs.NewSessionSweeper(a.sessions, a.cfg.SessionTTL), a.cfg.SessionSweepInterval))
	}

	if a.cfg.SyncTargetsFile != "" {
		targets, err := config.LoadSyncTargets(a.cfg.SyncTargetsFile)
		if err != nil {
			return nil, err
		}
		interval := a.cfg.SyncInterval
		if interval <= 0 {
			interval = time.Hour
		}
		workers = append(workers, jobs.NewWorker("sync", a.SyncScheduler(targets), interval).RunAtStart())
	}

	return workers, nil
}

// Components reports which backends are wired.
func (a *App) Components() handlers.Components {
	return a.components
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
