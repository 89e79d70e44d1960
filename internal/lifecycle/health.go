package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/claudewrap/pkg/client"
)

// Health classifies a daemon's answer to the health probe.
type Health string

const (
	Healthy   Health = "healthy"
	Unhealthy Health = "unhealthy"
	Unknown   Health = "unknown"
)

// DefaultHealthTimeout bounds one health probe.
const DefaultHealthTimeout = 2 * time.Second

// Prober checks the health endpoint of a daemon listening on port.
type Prober interface {
	Probe(ctx context.Context, port int) Health
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, port int) Health

func (f ProberFunc) Probe(ctx context.Context, port int) Health { return f(ctx, port) }

// HTTPProber probes http://127.0.0.1:<port><Path>.
type HTTPProber struct {
	Path    string
	Timeout time.Duration
	APIKey  string
}

// Probe never fails: transport errors map to Unknown and any answer other
// than a healthy one maps to Unhealthy.
func (p HTTPProber) Probe(ctx context.Context, port int) Health {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	cfg := client.ForPort(port)
	cfg.Timeout = timeout
	cfg.APIKey = p.APIKey
	if p.Path != "" {
		cfg.HealthPath = p.Path
	}

	_, err := client.New(cfg).Health(ctx)
	switch {
	case err == nil:
		return Healthy
	case errors.Is(err, client.ErrUnhealthy):
		slog.Debug("daemon answered the health probe negatively", "port", port, "error", err)
		return Unhealthy
	default:
		slog.Debug("health probe failed", "port", port, "error", err)
		return Unknown
	}
}
