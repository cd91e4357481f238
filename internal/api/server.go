// Package api exposes the HTTP surface: authenticated asset management,
// the unauthenticated range streamer, health, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalis-app/vocalis/internal/api/middleware"
	"github.com/vocalis-app/vocalis/internal/cache"
	"github.com/vocalis-app/vocalis/internal/config"
	"github.com/vocalis-app/vocalis/internal/health"
	"github.com/vocalis-app/vocalis/internal/ingest"
	"github.com/vocalis-app/vocalis/internal/store"
)

// Ingestor is the slice of the upload pipeline the handlers need.
// Satisfied by *ingest.Service.
type Ingestor interface {
	Ingest(ctx context.Context, up ingest.Upload) (store.Asset, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Server holds the handler dependencies.
type Server struct {
	store          store.Store
	cache          cache.Cache
	ingest         Ingestor
	healthManager  *health.Manager
	uploadDir      string
	maxUploadBytes int64
	authTokens     map[string]string

	uploadRateLimit int
	allowedOrigins  []string
}

// NewServer wires the handlers to their dependencies.
func NewServer(cfg config.AppConfig, st store.Store, c cache.Cache, ing Ingestor, hm *health.Manager) *Server {
	return &Server{
		store:           st,
		cache:           c,
		ingest:          ing,
		healthManager:   hm,
		uploadDir:       cfg.UploadDir,
		maxUploadBytes:  cfg.MaxUploadBytes,
		authTokens:      cfg.AuthTokens,
		uploadRateLimit: cfg.UploadRateLimit,
		allowedOrigins:  cfg.AllowedOrigins,
	}
}

// Routes builds the router with the canonical middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(s.allowedOrigins))
	r.Use(middleware.AccessLog)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/audio", func(r chi.Router) {
		// stream is filename-keyed and deliberately outside auth, see
		// handleStream
		r.Get("/stream/{filename}", s.handleStream)
		r.Head("/stream/{filename}", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/", s.handleList)
			r.Get("/{id}", s.handleGet)
			r.Delete("/{id}", s.handleDelete)

			r.Group(func(r chi.Router) {
				if s.uploadRateLimit > 0 {
					r.Use(middleware.UploadRateLimit(s.uploadRateLimit, config.DefaultUploadWindow))
				}
				r.Post("/upload", s.handleUpload)
			})
		})
	})

	return r
}

// handleHealth reports component health. The body always carries a
// "status" field; discovery probes on the client side check exactly that.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.healthManager.ServeHealth(w, r)
}

// HTTPServer wraps the router in a server with sane timeouts. Write
// timeout is generous because range streams to mobile clients are long
// lived.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
