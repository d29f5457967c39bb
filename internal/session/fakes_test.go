package session

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"summitflow/terminal/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "terminal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMux tracks which mux sessions exist without shelling out.
type fakeMux struct {
	mu          sync.Mutex
	sessions    map[string]bool
	failCreate  bool
	createCalls []string
	killCalls   []string
}

func newFakeMux() *fakeMux {
	return &fakeMux{sessions: map[string]bool{}}
}

func (m *fakeMux) SessionName(id string) string { return "summitflow-" + id }

func (m *fakeMux) ExistsByID(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *fakeMux) Create(id, workingDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, id)
	if m.failCreate {
		return errors.New("tmux: fork failed")
	}
	m.sessions[id] = true
	return nil
}

func (m *fakeMux) Kill(id string, ignoreMissing bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killCalls = append(m.killCalls, id)
	if m.sessions[id] {
		delete(m.sessions, id)
		return true, nil
	}
	if ignoreMissing {
		return false, nil
	}
	return false, errors.New("can't find session: " + id)
}

func (m *fakeMux) ListPrefixed() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *fakeMux) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *fakeMux) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls)
}
