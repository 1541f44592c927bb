package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server hosts the analysis API. Auth is intentionally absent: requests reach
// this service pre-authorized by the deployment layer.
type Server struct {
	Router *chi.Mux
	Port   int

	http   *http.Server
	logger *slog.Logger
}

func New(port int, requestTimeout time.Duration, handler *Handler, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(requestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "semantic-analysis")
	})

	r.Route("/api/v1/analysis", func(r chi.Router) {
		r.Post("/analyze", handler.Analyze)
		r.Get("/health", handler.Health)
		r.Get("/warmup", handler.WarmUp)
	})
	r.Get("/health", handler.Liveness)
	r.Get("/", handler.Root)

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}
