// Package server exposes the compiler and job lifecycle over HTTP: preflight
// queries, build submission, and pull-based job status.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storyreel/internal/logging"
	"storyreel/internal/renderjob"
	"storyreel/internal/services"
)

// Server wires the HTTP routes onto the lifecycle manager.
type Server struct {
	manager *renderjob.Manager
	logger  *slog.Logger
	engine  *gin.Engine
}

// New constructs the HTTP server.
func New(manager *renderjob.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		manager: manager,
		logger:  logger.With(logging.String("component", "http")),
		engine:  engine,
	}
	s.routes()
	return s
}

// Handler returns the underlying HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, bind string) error {
	srv := &http.Server{
		Addr:              bind,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", slog.String("address", bind))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/projects/:id/preflight", s.handlePreflight)
	api.POST("/projects/:id/build", s.handleBuild)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleJob)
	api.POST("/jobs/:id/cancel", s.handleCancel)
	api.POST("/jobs/:id/retry", s.handleRetry)
}

func (s *Server) writeServiceError(c *gin.Context, err error) {
	var conflict *renderjob.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "job_id": conflict.ExistingJobID})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, renderjob.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
