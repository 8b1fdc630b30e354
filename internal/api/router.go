// Package api is the HTTP surface: session lifecycle, one-off analysis,
// stateless graph merging, metrics and health.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/imagegen"
	"github.com/hurttlocker/scout/internal/observe"
	"github.com/hurttlocker/scout/internal/session"
)

// Config wires the router.
type Config struct {
	Manager        *session.Manager
	Metrics        *observe.Collector // optional
	Images         *imagegen.Client   // optional
	Logger         *zap.Logger
	AllowedOrigins []string
	Version        string
}

// Router serves the HTTP API.
type Router struct {
	manager *session.Manager
	metrics *observe.Collector
	images  *imagegen.Client
	logger  *zap.Logger
	origins []string
	version string
}

// NewRouter creates a router.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Router{
		manager: cfg.Manager,
		metrics: cfg.Metrics,
		images:  cfg.Images,
		logger:  logger,
		origins: origins,
		version: cfg.Version,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	if rt.metrics != nil {
		router.Use(rt.metrics.HTTPMiddleware)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", rt.healthCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", rt.createSession)
			r.Get("/", rt.listSessions)
			r.Get("/{sessionID}", rt.getSession)
			r.Delete("/{sessionID}", rt.deleteSession)
			r.Post("/{sessionID}/respond", rt.respond)
			r.Post("/{sessionID}/reset", rt.resetSession)
			r.Get("/{sessionID}/graph", rt.sessionGraph)
			r.Post("/{sessionID}/image", rt.sessionImage)
		})
		r.Post("/analyze", rt.analyze)
		r.Get("/patterns", rt.listPatterns)
		r.Mount("/graph", graph.NewHandler(rt.manager.Library(), rt.logger).Routes())
	})

	return router
}
