package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/progress"
	"github.com/desertthunder/songmigrate/internal/queue"
	"github.com/desertthunder/songmigrate/internal/repositories"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/desertthunder/songmigrate/internal/tasks"
	tu "github.com/desertthunder/songmigrate/internal/testing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router *gin.Engine
	source *tu.MockSource
	dest   *tu.MockDestination
	store  *progress.MemoryStore
	broker *queue.LocalBroker
	repo   *repositories.TransferRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := shared.NewLogger(io.Discard)
	f := &fixture{
		source: &tu.MockSource{
			Playlists: []models.Playlist{
				models.LikedSongsPlaylist(1),
				{ID: "p1", Name: "Road Trip", TrackCount: 3},
			},
		},
		dest:   &tu.MockDestination{},
		store:  progress.NewMemoryStore(),
		broker: queue.NewLocalBroker(4),
		repo:   repositories.NewTransferRepository(db),
	}

	engines := func(_ context.Context, sessionID string) (SessionEngine, error) {
		return tasks.NewTransferEngine(sessionID, tasks.EngineOpts{
			Source:      f.source,
			Destination: f.dest,
			Store:       f.store,
			Logger:      logger,
		})
	}

	srv := New(Options{
		Engines: engines,
		Jobs:    queue.NewDispatcher(f.broker, f.store, logger),
		Runs:    f.repo,
		Logger:  logger,
	})
	f.router = srv.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthenticate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/sessions/s1/auth", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[AuthResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "Successfully authenticated with both services", resp.Message)
	})

	t.Run("destination rejects credentials", func(t *testing.T) {
		f := newFixture(t)
		f.dest.AuthErr = errors.New("expired headers")

		w := f.do(t, http.MethodPost, "/api/sessions/s1/auth", nil)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decode[AuthResponse](t, w)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "YouTube Music")
		assert.Contains(t, resp.Message, "expired headers")
	})

	t.Run("invalid session id", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/sessions/bad.id/auth", nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decode[ErrorResponse](t, w).Error)
	})
}

func TestListPlaylists(t *testing.T) {
	t.Run("lists source playlists", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/api/sessions/s1/playlists", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[PlaylistsResponse](t, w)
		assert.Equal(t, "s1", resp.SessionID)
		require.Len(t, resp.Playlists, 2)
		assert.True(t, resp.Playlists[0].IsLikedSongs())
		assert.Equal(t, "Road Trip", resp.Playlists[1].Name)
	})

	t.Run("source failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.ListErr = fmt.Errorf("%w: spotify down", shared.ErrServiceUnavailable)

		w := f.do(t, http.MethodGet, "/api/sessions/s1/playlists", nil)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "service_unavailable", decode[ErrorResponse](t, w).Error)
	})

	t.Run("auth failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.AuthErr = errors.New("token revoked")

		w := f.do(t, http.MethodGet, "/api/sessions/s1/playlists", nil)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, f.source.TrackCalls)
	})
}

func TestSubmitTransfer(t *testing.T) {
	t.Run("queues a job", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/transfers", TransferRequest{
			SessionID:   "s1",
			PlaylistIDs: []string{"p1"},
		})

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		resp := decode[TransferAccepted](t, w)
		assert.NotEmpty(t, resp.Handle)
		assert.Equal(t, models.StatusPending, resp.Status)
		assert.Equal(t, 1, f.broker.Len())

		status, err := f.store.Status(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, status)
	})

	t.Run("applies defaults when options are omitted", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/transfers", TransferRequest{SessionID: "s1", PlaylistIDs: []string{"p1"}})
		require.Equal(t, http.StatusAccepted, w.Code)

		deliveries, err := f.broker.Consume(context.Background())
		require.NoError(t, err)
		select {
		case d := <-deliveries:
			assert.Equal(t, models.DefaultTransferOptions(), d.Job.Options)
		case <-time.After(time.Second):
			t.Fatal("no job published")
		}
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "malformed json", body: `{`},
			{name: "missing session", body: `{"playlist_ids":["p1"]}`},
			{name: "missing playlists", body: `{"session_id":"s1"}`},
			{name: "empty playlists", body: `{"session_id":"s1","playlist_ids":[]}`},
			{name: "empty playlist id", body: `{"session_id":"s1","playlist_ids":[""]}`},
			{name: "unknown privacy", body: `{"session_id":"s1","playlist_ids":["p1"],"options":{"privacy_status":"secret"}}`},
			{name: "unsafe session", body: `{"session_id":"../s1","playlist_ids":["p1"]}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				req := httptest.NewRequest(http.MethodPost, "/api/transfers", bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				f.router.ServeHTTP(w, req)

				assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
				assert.Equal(t, 0, f.broker.Len())
			})
		}
	})

	t.Run("rejects a second transfer for a busy session", func(t *testing.T) {
		f := newFixture(t)
		body := TransferRequest{SessionID: "s1", PlaylistIDs: []string{"p1"}}
		require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/transfers", body).Code)

		w := f.do(t, http.MethodPost, "/api/transfers", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "conflict", decode[ErrorResponse](t, w).Error)
		assert.Equal(t, 1, f.broker.Len())
	})
}

func TestTransferStatusAndCancel(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/transfers", TransferRequest{SessionID: "s1", PlaylistIDs: []string{"p1"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	handle := decode[TransferAccepted](t, w).Handle

	w = f.do(t, http.MethodGet, "/api/transfers/"+handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[queue.JobStatus](t, w)
	assert.Equal(t, handle, st.Handle)
	assert.Equal(t, "s1", st.SessionID)
	assert.Equal(t, models.StatusPending, st.Status)

	w = f.do(t, http.MethodPost, "/api/transfers/"+handle+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	requested, err := f.store.CancelRequested(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, requested)

	t.Run("unknown handle", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/transfers/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Error)

		w = f.do(t, http.MethodPost, "/api/transfers/nope/cancel", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 3 {
		report := &models.TransferReport{
			ID:        shared.GenerateID(),
			SessionID: "s1",
			Timestamp: time.Now().UTC(),
			Status:    models.StatusCompleted,
			Summary:   models.NewSummary(3, i, 3-i, 0),
			Details:   []string{"Added: Song by Artist"},
		}
		require.NoError(t, f.repo.Save(ctx, report))
	}

	w := f.do(t, http.MethodGet, "/api/sessions/s1/reports?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RunsResponse](t, w)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Runs, 2)

	w = f.do(t, http.MethodGet, "/api/sessions/other/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[RunsResponse](t, w).Runs)

	w = f.do(t, http.MethodGet, "/api/sessions/s1/reports?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("Spotify: %w: nope", shared.ErrAuthFailed), http.StatusUnauthorized},
		{fmt.Errorf("%w: token", shared.ErrMissingCredentials), http.StatusUnauthorized},
		{fmt.Errorf("%w: x", shared.ErrMissingArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: job h", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: session s1", shared.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: redis", shared.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{shared.ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
