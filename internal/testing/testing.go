// package testing contains shared testing utilities and catalog test doubles
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/songmigrate/internal/models"
)

// MockSource is a test double for [services.SourceCatalog].
type MockSource struct {
	mu         sync.Mutex
	Playlists  []models.Playlist
	Tracks     map[string][]models.Track
	AuthErr    error
	ListErr    error
	TrackErr   map[string]error
	TrackCalls []string
}

func (m *MockSource) Name() string { return "Spotify" }

func (m *MockSource) Authenticate(context.Context) error { return m.AuthErr }

func (m *MockSource) ListPlaylists(context.Context) ([]models.Playlist, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Playlists, nil
}

func (m *MockSource) ListTracks(_ context.Context, playlistID string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrackCalls = append(m.TrackCalls, playlistID)
	if err := m.TrackErr[playlistID]; err != nil {
		return nil, err
	}
	return m.Tracks[playlistID], nil
}

// MockDestination is a test double for [services.DestinationCatalog].
//
// Search returns the Results entry with the longest key that prefixes the query,
// so tests can key candidates by track title.
type MockDestination struct {
	mu       sync.Mutex
	Results  map[string][]models.MatchCandidate
	Existing map[string]string
	AuthErr  error
	FindErr  error
	// CreateErr fails playlist creation
	CreateErr error
	AddErr    map[string]error
	LikeErr   map[string]error
	PanicOn   string
	AfterAdd  func(n int)

	Queries []string
	Created []string
	Added   map[string][]string
	Liked   []string
	Finds   int
}

func (m *MockDestination) Name() string { return "YouTube Music" }

func (m *MockDestination) Authenticate(context.Context) error { return m.AuthErr }

func (m *MockDestination) Search(_ context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	keys := make([]string, 0, len(m.Results))
	for k := range m.Results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, k := range keys {
		if strings.HasPrefix(query, k) {
			res := m.Results[k]
			if len(res) > limit {
				res = res[:limit]
			}
			return res, nil
		}
	}
	return nil, nil
}

func (m *MockDestination) CreatePlaylist(_ context.Context, name, _ string, _ models.Privacy) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.Created = append(m.Created, name)
	return fmt.Sprintf("yt-%d", len(m.Created)), nil
}

func (m *MockDestination) FindPlaylistByName(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finds++
	if m.FindErr != nil {
		return "", false, m.FindErr
	}
	for existing, id := range m.Existing {
		if strings.EqualFold(existing, name) {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (m *MockDestination) AddTrack(_ context.Context, playlistID, trackID string) error {
	if m.PanicOn != "" && trackID == m.PanicOn {
		panic("unexpected response for " + trackID)
	}
	if err := m.AddErr[trackID]; err != nil {
		return err
	}

	m.mu.Lock()
	if m.Added == nil {
		m.Added = make(map[string][]string)
	}
	m.Added[playlistID] = append(m.Added[playlistID], trackID)
	n := 0
	for _, ids := range m.Added {
		n += len(ids)
	}
	m.mu.Unlock()

	if m.AfterAdd != nil {
		m.AfterAdd(n)
	}
	return nil
}

func (m *MockDestination) LikeTrack(_ context.Context, trackID string) error {
	if err := m.LikeErr[trackID]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Liked = append(m.Liked, trackID)
	return nil
}

// MockResolver returns canned suggestions keyed by source title.
type MockResolver struct {
	mu          sync.Mutex
	Suggestions map[string]string
	Err         error
	Calls       []string
}

func (m *MockResolver) SuggestCanonicalTitle(_ context.Context, title, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, title)
	if m.Err != nil {
		return "", m.Err
	}
	if s, ok := m.Suggestions[title]; ok {
		return s, nil
	}
	return "No result found", nil
}

// MockSink collects saved reports.
type MockSink struct {
	mu      sync.Mutex
	Reports []*models.TransferReport
	Err     error
}

func (m *MockSink) Save(_ context.Context, report *models.TransferReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Reports = append(m.Reports, report)
	return nil
}

// Saved returns a copy of the reports saved so far.
func (m *MockSink) Saved() []*models.TransferReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.TransferReport(nil), m.Reports...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
