// package server contains the gin HTTP transport for the song migration service
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/queue"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// SessionEngine is the part of a per-session transfer engine the HTTP layer calls directly.
type SessionEngine interface {
	Authenticate(ctx context.Context) (string, error)
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
}

// EngineFunc builds the engine for one session.
type EngineFunc func(ctx context.Context, sessionID string) (SessionEngine, error)

// Jobs submits transfers and answers status and cancel calls by handle.
type Jobs interface {
	Submit(ctx context.Context, sessionID string, playlistIDs []string, opts models.TransferOptions) (string, error)
	Status(ctx context.Context, handle string) (queue.JobStatus, error)
	Cancel(ctx context.Context, handle string) (queue.JobStatus, error)
}

// Runs lists persisted transfer runs.
type Runs interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*repositories.TransferRun, error)
}

// Options wires the collaborators a [Server] needs.
type Options struct {
	Engines EngineFunc
	Jobs    Jobs
	Runs    Runs
	Logger  *log.Logger
	// Defaults is applied to transfer requests that omit options entirely.
	Defaults models.TransferOptions
}

// Server serves the transfer API.
type Server struct {
	engines  EngineFunc
	jobs     Jobs
	runs     Runs
	logger   *log.Logger
	defaults models.TransferOptions
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	defaults := opts.Defaults
	if defaults == (models.TransferOptions{}) {
		defaults = models.DefaultTransferOptions()
	}
	return &Server{
		engines:  opts.Engines,
		jobs:     opts.Jobs,
		runs:     opts.Runs,
		logger:   logger,
		defaults: defaults,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		sessions := api.Group("/sessions/:session")
		sessions.POST("/auth", s.authenticate)
		sessions.GET("/playlists", s.listPlaylists)
		sessions.GET("/reports", s.listReports)

		transfers := api.Group("/transfers")
		transfers.POST("", s.submitTransfer)
		transfers.GET("/:handle", s.transferStatus)
		transfers.POST("/:handle/cancel", s.cancelTransfer)
	}
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("request", kv...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("request", kv...)
		default:
			s.logger.Debug("request", kv...)
		}
	}
}
