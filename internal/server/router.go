package server

import (
	"net/http"

	"github.com/cloo-solutions/ragsync/internal/api/handlers"
	"github.com/cloo-solutions/ragsync/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes int64 = 25 * 1024 * 1024

type RouterConfig struct {
	// AuthValidator guards every route but /health. Nil disables auth.
	AuthValidator middleware.AuthValidator
	// RateLimiter throttles callers. Nil disables limiting.
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64

	HealthHandler  *handlers.HealthHandler
	ChatHandler    *handlers.ChatHandler
	SearchHandler  *handlers.SearchHandler
	SyncHandler    *handlers.SyncHandler
	IngestHandler  *handlers.IngestHandler
	ParseHandler   *handlers.ParseHandler
	EmbedHandler   *handlers.EmbedHandler
	VectorsHandler *handlers.VectorsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", cfg.ChatHandler.Chat)
			r.Post("/stream", cfg.ChatHandler.Stream)
			r.Get("/history/{session_id}", cfg.ChatHandler.History)
			r.Delete("/history/{session_id}", cfg.ChatHandler.ClearHistory)
			r.Get("/sessions", cfg.ChatHandler.Sessions)
		})

		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/drive/sync", cfg.SyncHandler.Drive)
		r.Post("/s3/sync", cfg.SyncHandler.S3)
		r.Post("/ingest/web", cfg.IngestHandler.Web)
		r.Post("/parse", cfg.ParseHandler.Parse)
		r.Post("/embed", cfg.EmbedHandler.Embed)

		r.Route("/vectors", func(r chi.Router) {
			r.Post("/delete", cfg.VectorsHandler.Delete)
			r.Get("/stats", cfg.VectorsHandler.Stats)
		})
	})

	return r
}
