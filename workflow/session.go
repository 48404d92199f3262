package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session groups one agent, its contacts, and its history under one id.
// The session mutex is the single-writer lock from the concurrency model:
// any two requests touching the same session's agent are serialized here.
type Session struct {
	ID        string    `json:"session_id"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`

	mu    sync.Mutex
	agent *Agent
}

// WithAgent runs fn while holding the session lock.
func (s *Session) WithAgent(fn func(a *Agent) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.agent)
}

// Manager is the injected service object replacing the source's global
// thread registry. It owns all sessions; deleting a session releases its
// agent, contacts, and history together.
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create(location string) *Session {
	id := "thread-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s := &Session{
		ID:        id,
		Location:  location,
		CreatedAt: time.Now().UTC(),
		agent:     NewAgent(m.deps, location),
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// GetOrCreate returns the session for id, creating it when id is empty or
// unknown. Callers that add a contact to a fresh thread id get a working
// session instead of a 404.
func (m *Manager) GetOrCreate(id, location string) *Session {
	if strings.TrimSpace(id) != "" {
		if s, err := m.Get(id); err == nil {
			return s
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(id) == "" {
		id = "thread-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{
		ID:        id,
		Location:  location,
		CreatedAt: time.Now().UTC(),
		agent:     NewAgent(m.deps, location),
	}
	m.sessions[id] = s
	return s
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// List returns session summaries ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
