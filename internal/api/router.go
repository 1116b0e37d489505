package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/doctorhouse/internal/api/handlers"
	"github.com/nikhilbhutani/doctorhouse/internal/api/middleware"
	"github.com/nikhilbhutani/doctorhouse/internal/auth"
	"github.com/nikhilbhutani/doctorhouse/internal/config"
	"github.com/nikhilbhutani/doctorhouse/internal/upload"
)

// Deps are the shared, request-independent services behind the routes.
type Deps struct {
	Extractor handlers.Extractor
	Models    handlers.ModelLister
	Uploads   *upload.Store
	Limiter   middleware.Limiter
	Checks    map[string]handlers.Pinger
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	limiter := rt.deps.Limiter
	if limiter == nil {
		limiter = middleware.NewMemoryLimiter(rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst)
	}

	// Health endpoints (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/health", health.Health)
	r.Get("/readyz", health.Readyz)

	extractH := handlers.NewExtractionHandler(rt.deps.Extractor, rt.deps.Uploads, rt.cfg.Upload.MaxBytes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		if rt.cfg.Auth.JWTSecret != "" {
			r.Use(auth.NewJWTMiddleware(rt.cfg.Auth.JWTSecret).Authenticate)
		}

		// Unversioned aliases kept for existing clients
		r.Post("/transcribe", extractH.Transcribe)
		r.Post("/upload_txt", extractH.UploadText)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/transcribe", extractH.Transcribe)
			r.Post("/upload_txt", extractH.UploadText)
			r.Post("/extract", extractH.ExtractJSON)

			if rt.deps.Models != nil {
				r.Get("/models", handlers.NewModelsHandler(rt.deps.Models).List)
			}
		})
	})

	return r
}
