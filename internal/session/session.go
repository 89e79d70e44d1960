// Package session keeps the daemon's conversation sessions in memory and
// expires idle ones.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session manager is shut down")
)

// Session is one conversation tracked by the daemon.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	closed   bool
	started  bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewManager builds a manager; zero durations select the defaults. Call
// Start to run the cleanup loop.
func NewManager(ttl, cleanupInterval time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		interval: cleanupInterval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the expiry loop. It returns immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	go m.loop()
}

func (m *Manager) loop() {
	defer close(m.done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			if n := m.Cleanup(); n > 0 {
				slog.Info("expired sessions removed", "count", n)
			}
		}
	}
}

// Create registers a new session with a random id.
func (m *Manager) Create() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Session{}, ErrClosed
	}
	now := m.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, LastUsed: now, ExpiresAt: now.Add(m.ttl)}
	m.sessions[s.ID] = s
	return *s, nil
}

// Touch marks the session as used and extends its expiry.
func (m *Manager) Touch(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, ErrNotFound
	}
	s.LastUsed = m.now()
	s.ExpiresAt = s.LastUsed.Add(m.ttl)
	return *s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// Delete removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns live sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.Lock()
	now := m.now()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if now.Before(s.ExpiresAt) {
			out = append(out, *s)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cleanup drops expired sessions and reports how many were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Shutdown stops the expiry loop and drops every session. It waits for
// the loop to exit, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.closed = true
	started := m.started
	m.mu.Unlock()

	m.once.Do(func() { close(m.stop) })
	slog.Info("session manager stopped", "sessions", n)
	if !started {
		return nil
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
