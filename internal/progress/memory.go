package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
)

// MemoryStore implements [Store] in process, for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[string]float64
	status   map[string]models.Status
	cancel   map[string]bool
	jobs     map[string]string
	active   map[string]string
	results  map[string]JobResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]float64),
		status:   make(map[string]models.Status),
		cancel:   make(map[string]bool),
		jobs:     make(map[string]string),
		active:   make(map[string]string),
		results:  make(map[string]JobResult),
	}
}

func (m *MemoryStore) SetProgress(_ context.Context, sessionID string, percent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[sessionID] = percent
	return nil
}

func (m *MemoryStore) Progress(_ context.Context, sessionID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.progress[sessionID]
	if !ok {
		return 0, fmt.Errorf("%w: progress for session %s", shared.ErrNotFound, sessionID)
	}
	return v, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, sessionID string, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[sessionID] = status
	return nil
}

func (m *MemoryStore) Status(_ context.Context, sessionID string) (models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.status[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: status for session %s", shared.ErrNotFound, sessionID)
	}
	return v, nil
}

func (m *MemoryStore) RequestCancel(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel[sessionID] = true
	return nil
}

func (m *MemoryStore) CancelRequested(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel[sessionID], nil
}

func (m *MemoryStore) ClearCancel(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancel, sessionID)
	return nil
}

func (m *MemoryStore) BindJob(_ context.Context, handle, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[handle] = sessionID
	return nil
}

func (m *MemoryStore) SessionForJob(_ context.Context, handle string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.jobs[handle]
	if !ok {
		return "", fmt.Errorf("%w: job %s", shared.ErrNotFound, handle)
	}
	return v, nil
}

func (m *MemoryStore) ClaimSession(_ context.Context, sessionID, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[sessionID]; ok && cur != handle {
		return false, nil
	}
	m.active[sessionID] = handle
	return true, nil
}

func (m *MemoryStore) ActiveJob(_ context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.active[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: active job for session %s", shared.ErrNotFound, sessionID)
	}
	return v, nil
}

func (m *MemoryStore) FinishJob(_ context.Context, sessionID, handle string, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := JobResult{Status: status}
	if m.active[sessionID] == handle {
		result.Progress = m.progress[sessionID]
		delete(m.active, sessionID)
	}
	if status == models.StatusCompleted {
		result.Progress = 100
	}
	m.results[handle] = result
	return nil
}

func (m *MemoryStore) JobResult(_ context.Context, handle string) (JobResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.results[handle]
	if !ok {
		return JobResult{}, fmt.Errorf("%w: result for job %s", shared.ErrNotFound, handle)
	}
	return v, nil
}
