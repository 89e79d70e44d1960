package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loykin/claudewrap/internal/metrics"
	"github.com/loykin/claudewrap/internal/session"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Sessions is the subset of *session.Manager the router serves.
type Sessions interface {
	Create() (session.Session, error)
	List() []session.Session
	Delete(id string) error
}

// Options configures the router.
type Options struct {
	APIKey string
	Mock   bool
}

// Router provides the daemon's HTTP endpoints:
//
//	GET    /health
//	GET    /metrics
//	GET    /v1/models
//	GET    /v1/sessions
//	POST   /v1/sessions
//	DELETE /v1/sessions/:id
//
// /v1 routes require the API key when one is configured.
type Router struct {
	sessions Sessions
	opts     Options
	started  time.Time
}

// NewRouter constructs a Router. sessions may be nil.
func NewRouter(sessions Sessions, opts Options) *Router {
	return &Router{sessions: sessions, opts: opts, started: time.Now()}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(), corsMiddleware())
	g.GET("/health", r.handleHealth)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := g.Group("/v1", apiKeyAuth(r.opts.APIKey))
	v1.GET("/models", r.handleModels)
	v1.GET("/sessions", r.handleListSessions)
	v1.POST("/sessions", r.handleCreateSession)
	v1.DELETE("/sessions/:id", r.handleDeleteSession)
	return g
}

// NewServer builds the daemon's http.Server for port on all interfaces.
// The caller runs ListenAndServe so that listen failures can be routed
// into the shutdown path.
func NewServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
}

// --- Handlers ---

type healthResp struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`
	Mode      string    `json:"mode"`
}

func (r *Router) handleHealth(c *gin.Context) {
	mode := "live"
	if r.opts.Mock {
		mode = "mock"
	}
	writeJSON(c, http.StatusOK, healthResp{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(r.started).Round(time.Second).String(),
		Version:   Version,
		Mode:      mode,
	})
}

type model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type listResp[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

var models = []string{
	"claude-opus-4-20250514",
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
}

func (r *Router) handleModels(c *gin.Context) {
	created := r.started.Unix()
	data := make([]model, 0, len(models))
	for _, id := range models {
		data = append(data, model{ID: id, Object: "model", Created: created, OwnedBy: "anthropic"})
	}
	writeJSON(c, http.StatusOK, listResp[model]{Object: "list", Data: data})
}

func (r *Router) handleListSessions(c *gin.Context) {
	data := []session.Session{}
	if r.sessions != nil {
		data = r.sessions.List()
	}
	writeJSON(c, http.StatusOK, listResp[session.Session]{Object: "list", Data: data})
}

func (r *Router) handleCreateSession(c *gin.Context) {
	if r.sessions == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "sessions are disabled"})
		return
	}
	s, err := r.sessions.Create()
	if err != nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusCreated, s)
}

func (r *Router) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid session id"})
		return
	}
	if r.sessions == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: session.ErrNotFound.Error()})
		return
	}
	if err := r.sessions.Delete(id); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeJSON(c, code, errorResp{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
