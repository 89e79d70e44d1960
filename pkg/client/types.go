package client

import "time"

// HealthResponse is the body served by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
	Version   string    `json:"version,omitempty"`
	Mode      string    `json:"mode,omitempty"`
}

// Session mirrors one entry of GET /v1/sessions.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionList is the envelope of GET /v1/sessions.
type SessionList struct {
	Object string    `json:"object"`
	Data   []Session `json:"data"`
}

// ErrorResponse is the daemon's error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
