package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestManager(ttl time.Duration) (*Manager, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(ttl, time.Hour)
	m.now = c.now
	return m, c
}

func TestCreateGetDelete(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, err := m.Create()
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, m.Delete(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID), ErrNotFound)
}

func TestExpiryAndTouch(t *testing.T) {
	m, c := newTestManager(time.Minute)
	a, _ := m.Create()
	c.advance(30 * time.Second)
	b, _ := m.Create()

	c.advance(40 * time.Second) // a is 70s old, b 40s
	_, err := m.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Touch(a.ID)
	assert.ErrorIs(t, err, ErrNotFound, "expired sessions cannot be revived")

	touched, err := m.Touch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, c.now().Add(time.Minute), touched.ExpiresAt)

	assert.Equal(t, []Session{touched}, m.List())
	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 0, m.Cleanup())
}

func TestListOldestFirst(t *testing.T) {
	m, c := newTestManager(time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		s, _ := m.Create()
		ids = append(ids, s.ID)
		c.advance(time.Second)
	}
	list := m.List()
	require.Len(t, list, 3)
	for i, s := range list {
		assert.Equal(t, ids[i], s.ID)
	}
}

func TestShutdownStopsLoopAndClears(t *testing.T) {
	m := NewManager(time.Millisecond, 5*time.Millisecond)
	m.Start()
	m.Start()
	_, err := m.Create()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Empty(t, m.List())
	_, err = m.Create()
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, m.Shutdown(ctx), "second shutdown is harmless")
}

func TestShutdownWithoutStart(t *testing.T) {
	m := NewManager(0, 0)
	assert.Equal(t, DefaultTTL, m.ttl)
	assert.Equal(t, DefaultCleanupInterval, m.interval)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStartAfterShutdownIsNoop(t *testing.T) {
	m := NewManager(time.Millisecond, time.Millisecond)
	require.NoError(t, m.Shutdown(context.Background()))
	m.Start()

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	assert.False(t, started, "a closed manager never runs its sweeper")
	select {
	case <-m.done:
		t.Fatal("loop ran after shutdown")
	default:
	}
}

func TestCleanupLoopExpires(t *testing.T) {
	m := NewManager(10*time.Millisecond, 5*time.Millisecond)
	m.Start()
	defer func() { _ = m.Shutdown(context.Background()) }()
	_, _ = m.Create()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.sessions)
		m.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expired session was never collected")
}
