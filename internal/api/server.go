package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Forken21/botsat/internal/auth"
	"github.com/Forken21/botsat/internal/cache"
	"github.com/Forken21/botsat/internal/health"
	"github.com/Forken21/botsat/internal/location"
	"github.com/Forken21/botsat/internal/metrics"
	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
	"github.com/Forken21/botsat/internal/stream"
	"github.com/Forken21/botsat/internal/tle"
)

// Deps are the collaborators the handlers use.
type Deps struct {
	Store      *tle.Store
	Refresher  *tle.Refresher
	Propagator *propagation.Propagator
	Finder     *passes.Finder
	Locations  location.Store
	Stream     *stream.Handler
	Checks     []health.Check

	// Cache is optional; nil disables reuse of chat command answers.
	Cache *cache.PassCache

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	store     *tle.Store
	refresher *tle.Refresher
	prop      *propagation.Propagator
	finder    *passes.Finder
	dayFinder *passes.Finder // capped at commandWindow for the chat commands
	locations location.Store
	stream    *stream.Handler
	cache     *cache.PassCache
	now       func() time.Time
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger = logger.With("component", "api")

	dayCfg := deps.Finder.Config()
	dayCfg.Cap = commandWindow
	s := &Server{
		logger:    logger,
		store:     deps.Store,
		refresher: deps.Refresher,
		prop:      deps.Propagator,
		finder:    deps.Finder,
		dayFinder: passes.NewFinder(dayCfg, deps.Propagator),
		locations: deps.Locations,
		stream:    deps.Stream,
		cache:     deps.Cache,
		now:       deps.Now,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(auth.Middleware(authCfg))

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz(deps.Checks...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalogs", s.handleListCatalogs)
		r.Get("/catalogs/{group}", s.handleGetCatalog)
		r.Post("/catalogs/{group}/refresh", s.handleRefreshCatalog)

		r.Get("/passes", s.handlePasses)
		r.Get("/visible", s.handleVisible)

		r.Route("/satellites/{group}/{name}", func(r chi.Router) {
			r.Get("/passes", s.handleSatellitePasses)
			r.Get("/passes/stream", s.handleSatelliteStream)
			r.Get("/look", s.handleLook)
		})

		r.Route("/users/{user_id}", func(r chi.Router) {
			r.Put("/location", s.handlePutLocation)
			r.Get("/location", s.handleGetLocation)
			r.Delete("/location", s.handleDeleteLocation)
			r.Get("/passes", s.handleUserPasses)
		})
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Pass searches over many satellites can take a while. The stream
		// handler clears its own deadline.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the request ID stored by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID keeps a caller-supplied X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
