package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "secret"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHealthy(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Mode: "mock"})
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", h.Mode)
	assert.True(t, c.IsReachable(context.Background()))
}

func TestUnhealthyResponses(t *testing.T) {
	cases := []struct {
		name string
		code int
		body any
	}{
		{"degraded body", http.StatusOK, HealthResponse{Status: "degraded"}},
		{"server error", http.StatusInternalServerError, ErrorResponse{Error: "boom"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tc.code, tc.body)
			})
			_, err := c.Health(context.Background())
			require.ErrorIs(t, err, ErrUnhealthy)
			assert.True(t, c.IsReachable(context.Background()))
		})
	}
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: 200 * time.Millisecond})
	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhealthy)
	assert.False(t, c.IsReachable(context.Background()))
}

func TestSessions(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/sessions":
			writeJSON(w, http.StatusOK, SessionList{Object: "list", Data: []Session{{ID: "a"}, {ID: "b"}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/sessions/a":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
		}
	})
	ss, err := c.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, ss, 2)

	require.NoError(t, c.DeleteSession(context.Background(), "a"))
	err = c.DeleteSession(context.Background(), "zzz")
	require.EqualError(t, err, "API error: session not found")
}

func TestForPortAndDefaults(t *testing.T) {
	cfg := ForPort(8123)
	assert.Equal(t, "http://127.0.0.1:8123", cfg.BaseURL)
	c := New(Config{})
	assert.Equal(t, "http://127.0.0.1:8080", c.BaseURL())
	assert.Equal(t, DefaultHealthPath, c.healthPath)
}
