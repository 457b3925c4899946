// Package api exposes the coordinator and the change log over HTTP.
//
// Every JSON response uses the Envelope contract: successful calls carry
// data (and sometimes meta), failed calls carry an error with a registrar
// error code. The change stream is served as server-sent events.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/registrar/internal/changelog"
	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/metrics"
	"github.com/roach88/registrar/internal/store"
)

// DefaultShutdownTimeout bounds the graceful drain of open requests.
const DefaultShutdownTimeout = 5 * time.Second

// Server routes HTTP requests to the registrar.
type Server struct {
	store   *store.Store
	coord   *coordinator.Coordinator
	log     *changelog.Log
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  *gin.Engine

	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves m at /metrics and records request metrics into it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithChangeLog sets the change log used by the changes endpoints.
func WithChangeLog(l *changelog.Log) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New builds a server and its routes.
func New(st *store.Store, coord *coordinator.Coordinator, opts ...Option) *Server {
	s := &Server{
		store:           st,
		coord:           coord,
		logger:          slog.Default(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = changelog.New(st)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(s.logger))
	if s.metrics != nil {
		r.Use(Metrics(s.metrics))
	}

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/enrollments", s.enroll)
		v1.GET("/enrollments/:id", s.enrollment)
		v1.POST("/enrollments/:id/grade", s.grade)
		v1.POST("/enrollments/:id/withdraw", s.withdraw)
		v1.GET("/enrollments/:id/grades", s.gradeHistory)

		v1.GET("/students/:code", s.student)
		v1.GET("/students/:code/enrollments", s.studentEnrollments)
		v1.POST("/students/:code/graduate", s.graduate)

		v1.GET("/changes/:collection", s.changes)
		v1.GET("/changes/:collection/stream", s.stream)
		v1.GET("/audit", s.audit)
	}
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("http server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
