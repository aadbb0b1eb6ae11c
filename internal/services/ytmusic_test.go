package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

func writeHeaders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "headerssession1.json")
	if err := os.WriteFile(path, []byte(`{"cookie":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYTMusicDestination(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		svc := NewYTMusicDestination("", "", nil)
		if svc.baseURL != defaultYTBaseURL {
			t.Errorf("expected baseURL %s, got %s", defaultYTBaseURL, svc.baseURL)
		}
		if svc.Name() != "YouTube Music" {
			t.Errorf("unexpected name %s", svc.Name())
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("missing headers file", func(t *testing.T) {
			svc := NewYTMusicDestination("http://127.0.0.1:1", filepath.Join(t.TempDir(), "nope.json"), nil)
			if err := svc.Authenticate(ctx); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("proxy rejects headers", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "expired cookie"})
			}))
			defer server.Close()

			svc := NewYTMusicDestination(server.URL, writeHeaders(t), server.Client())
			err := svc.Authenticate(ctx)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("ok", func(t *testing.T) {
			headers := writeHeaders(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("X-Auth-File"); got != headers {
					t.Errorf("expected X-Auth-File %s, got %s", headers, got)
				}
				if r.Method != http.MethodGet || r.URL.Path != "/api/library/playlists" || r.URL.Query().Get("limit") != "1" {
					t.Errorf("unexpected auth check %s %s", r.Method, r.URL.RequestURI())
				}
				w.Write([]byte(`[]`))
			}))
			defer server.Close()

			if err := NewYTMusicDestination(server.URL, headers, server.Client()).Authenticate(ctx); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/search" {
				t.Errorf("expected /api/search, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("q") != "Song Artist Album" || q.Get("filter") != "songs" || q.Get("limit") != "2" {
				t.Errorf("unexpected query %v", q)
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{"videoId": "v1", "title": "Song", "artists": []map[string]string{{"name": "Artist"}, {"name": "Other"}}},
				{"videoId": "", "title": "Song (Live)", "artists": []map[string]string{}},
				{"videoId": "v3", "title": "Extra"},
			})
		}))
		defer server.Close()

		svc := NewYTMusicDestination(server.URL, "", server.Client())
		got, err := svc.Search(ctx, "Song Artist Album", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected results truncated to 2, got %d", len(got))
		}
		want := models.MatchCandidate{DestinationID: "v1", Title: "Song", PrimaryArtist: "Artist"}
		if got[0] != want {
			t.Errorf("expected %+v, got %+v", want, got[0])
		}
		if got[1].DestinationID != "" || got[1].PrimaryArtist != "" {
			t.Errorf("expected empty id and artist, got %+v", got[1])
		}
	})

	t.Run("Search timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := NewYTMusicDestination(server.URL, "", server.Client()).Search(ctx, "q", 5)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("FindPlaylistByName", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{
				{"playlistId": "PL1", "title": "Road Trip", "count": 3},
				{"playlistId": "PL2", "title": "  FAVORITES ", "count": 9},
			})
		}))
		defer server.Close()

		svc := NewYTMusicDestination(server.URL, "", server.Client())

		id, found, err := svc.FindPlaylistByName(ctx, "favorites")
		if err != nil || !found || id != "PL2" {
			t.Errorf("expected PL2 found, got %q %v %v", id, found, err)
		}

		_, found, err = svc.FindPlaylistByName(ctx, "Gym")
		if err != nil || found {
			t.Errorf("expected not found, got %v %v", found, err)
		}
	})

	t.Run("CreatePlaylist AddTrack LikeTrack", func(t *testing.T) {
		var calls []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.Method+" "+r.URL.Path)
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)

			switch r.URL.Path {
			case "/api/playlists":
				if body["title"] != "Road Trip" || body["privacy_status"] != "UNLISTED" {
					t.Errorf("unexpected create body %v", body)
				}
				json.NewEncoder(w).Encode(map[string]string{"playlist_id": "PLnew"})
			case "/api/playlists/PLnew/items":
				ids, _ := body["video_ids"].([]any)
				if len(ids) != 1 || ids[0] != "v1" {
					t.Errorf("unexpected add body %v", body)
				}
				w.Write([]byte(`{"status":"ok"}`))
			case "/api/songs/v1/rating":
				if body["rating"] != "LIKE" {
					t.Errorf("unexpected rating body %v", body)
				}
				w.Write([]byte(`{"status":"ok"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		svc := NewYTMusicDestination(server.URL, "", server.Client())

		id, err := svc.CreatePlaylist(ctx, "Road Trip", "desc", models.PrivacyUnlisted)
		if err != nil || id != "PLnew" {
			t.Fatalf("expected PLnew, got %q %v", id, err)
		}
		if err := svc.AddTrack(ctx, id, "v1"); err != nil {
			t.Errorf("AddTrack: %v", err)
		}
		if err := svc.LikeTrack(ctx, "v1"); err != nil {
			t.Errorf("LikeTrack: %v", err)
		}
		if err := svc.AddTrack(ctx, "missing", "v1"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if len(calls) != 4 {
			t.Errorf("expected 4 calls, got %v", calls)
		}
	})

	t.Run("CreatePlaylist without id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := NewYTMusicDestination(server.URL, "", server.Client()).CreatePlaylist(ctx, "x", "", models.PrivacyPrivate)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
