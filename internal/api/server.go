// Package api exposes the REST interface over the catalog resolver.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/config"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
)

// Catalog is the resolver surface the handlers call. *resolver.Service
// satisfies it; tests substitute a fake.
type Catalog interface {
	ResolveBooks(ctx context.Context, asins []string, region catalog.Region, forceRefresh bool) ([]catalog.Book, error)
	GetBook(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Book, error)
	GetChapters(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Track, error)
	GetAuthor(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Author, error)
	AuthorBooks(ctx context.Context, asin string, region catalog.Region, useCache bool) ([]catalog.Book, error)
	FindAuthor(ctx context.Context, name string, region catalog.Region) (catalog.Author, error)
	GetSeries(ctx context.Context, asin string, region catalog.Region, forceRefresh bool) (catalog.Series, error)
	SeriesBooks(ctx context.Context, asin string, region catalog.Region, useCache bool) ([]catalog.Book, error)
	FindSeries(ctx context.Context, title string) ([]catalog.Series, error)
	SearchBooks(ctx context.Context, title, author string, region catalog.Region, useCache bool) ([]catalog.Book, error)
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the resolver.
type Server struct {
	router  chi.Router
	catalog Catalog
	pinger  Pinger
	logger  *zap.Logger
	cfg     config.ServerConfig
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cat Catalog, pinger Pinger, logger *zap.Logger, cfg config.ServerConfig) *Server {
	s := &Server{
		catalog: cat,
		pinger:  pinger,
		logger:  logger,
		cfg:     cfg,
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/book", s.getBooks)
	r.Get("/book/{asin}", s.getBook)
	r.Get("/chapters/{asin}", s.getChapters)
	r.Get("/author", s.findAuthor)
	r.Get("/author/{asin}", s.getAuthor)
	r.Get("/author/books/{asin}", s.getAuthorBooks)
	r.Get("/series", s.findSeries)
	r.Get("/series/{asin}", s.getSeries)
	r.Get("/series/books/{asin}", s.getSeriesBooks)
	r.Get("/search", s.searchBooks)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness probe failed", zap.Error(err))
		writeError(s.logger, w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

// RequestID returns the request id placed on the context by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
