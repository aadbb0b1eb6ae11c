package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/services"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/gin-gonic/gin"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AuthResponse reports the outcome of authenticating both catalogs.
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PlaylistsResponse lists the source playlists of a session.
type PlaylistsResponse struct {
	SessionID string            `json:"session_id"`
	Playlists []models.Playlist `json:"playlists"`
}

// TransferRequest starts a transfer of the selected playlists.
type TransferRequest struct {
	SessionID   string                  `json:"session_id" binding:"required"`
	PlaylistIDs []string                `json:"playlist_ids" binding:"required,min=1,dive,required"`
	Options     *models.TransferOptions `json:"options"`
}

// TransferAccepted is returned once a transfer is queued.
type TransferAccepted struct {
	Handle string        `json:"handle"`
	Status models.Status `json:"status"`
}

// RunsResponse lists persisted runs of a session.
type RunsResponse struct {
	SessionID string                      `json:"session_id"`
	Runs      []*repositories.TransferRun `json:"runs"`
}

type sessionURI struct {
	SessionID string `uri:"session" binding:"required"`
}

type handleURI struct {
	Handle string `uri:"handle" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) authenticate(c *gin.Context) {
	sessionID, ok := s.bindSession(c)
	if !ok {
		return
	}

	engine, err := s.engines(c.Request.Context(), sessionID)
	if err != nil {
		s.fail(c, err)
		return
	}

	msg, err := engine.Authenticate(c.Request.Context())
	if err != nil {
		s.logger.Warn("authentication failed", "session", sessionID, "error", err)
		c.JSON(statusFor(err), AuthResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Success: true, Message: msg})
}

func (s *Server) listPlaylists(c *gin.Context) {
	sessionID, ok := s.bindSession(c)
	if !ok {
		return
	}

	engine, err := s.engines(c.Request.Context(), sessionID)
	if err != nil {
		s.fail(c, err)
		return
	}

	playlists, err := engine.ListPlaylists(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	c.JSON(http.StatusOK, PlaylistsResponse{SessionID: sessionID, Playlists: playlists})
}

func (s *Server) submitTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}
	if err := services.ValidateSessionID(req.SessionID); err != nil {
		s.fail(c, err)
		return
	}

	opts := s.defaults
	if req.Options != nil {
		opts = *req.Options
	}
	if err := opts.Validate(); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}

	handle, err := s.jobs.Submit(c.Request.Context(), req.SessionID, req.PlaylistIDs, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, TransferAccepted{Handle: handle, Status: models.StatusPending})
}

func (s *Server) transferStatus(c *gin.Context) {
	var uri handleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	st, err := s.jobs.Status(c.Request.Context(), uri.Handle)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) cancelTransfer(c *gin.Context) {
	var uri handleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	st, err := s.jobs.Cancel(c.Request.Context(), uri.Handle)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

func (s *Server) listReports(c *gin.Context) {
	sessionID, ok := s.bindSession(c)
	if !ok {
		return
	}

	limit := defaultReportLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxReportLimit)
	}

	runs, err := s.runs.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*repositories.TransferRun{}
	}
	c.JSON(http.StatusOK, RunsResponse{SessionID: sessionID, Runs: runs})
}

func (s *Server) bindSession(c *gin.Context) (string, bool) {
	var uri sessionURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return "", false
	}
	if err := services.ValidateSessionID(uri.SessionID); err != nil {
		s.fail(c, err)
		return "", false
	}
	return uri.SessionID, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: codeFor(status), Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}
