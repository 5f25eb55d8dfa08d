package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Info identifies an open session.
type Info struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
}

// Manager keeps the open sessions of a server process.
type Manager struct {
	fs          afero.Fs
	opts        Options
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a manager that opens files from fs. maxSessions of zero
// means no limit.
func NewManager(fs afero.Fs, opts Options, maxSessions int) *Manager {
	return &Manager{
		fs:          fs,
		opts:        opts,
		maxSessions: maxSessions,
		sessions:    make(map[string]*Session),
	}
}

// Open starts a session over path and returns its ID.
func (m *Manager) Open(path string) (string, *Session, error) {
	m.mu.RLock()
	full := m.maxSessions > 0 && len(m.sessions) >= m.maxSessions
	m.mu.RUnlock()
	if full {
		return "", nil, fmt.Errorf("too many open sessions (limit %d)", m.maxSessions)
	}

	s, err := Open(m.fs, path, m.opts)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return "", nil, fmt.Errorf("too many open sessions (limit %d)", m.maxSessions)
	}
	m.sessions[id] = s
	return id, s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := s.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
		return err
	}
	delete(m.sessions, id)
	return nil
}

// List returns the open sessions ordered by path, then ID.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, Info{ID: id, Path: s.Path(), PageCount: s.PageCount()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CloseAll closes every session that is not saving and reports how many
// were closed.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if err := s.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n
}
