// Package httpapi is the HTTP boundary: auth, CORS, health, and the
// six documented endpoints (thread create/delete/messages, streamed
// run, tool approval), wired directly over net/http per the project's
// stdlib-HTTP decision -- no router/framework dependency.
package httpapi

import (
	"net/http"

	"github.com/xiaomayi-ant/smart-agent-go/internal/checkpoint"
	"github.com/xiaomayi-ant/smart-agent-go/internal/config"
	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/orchestrator"
	"github.com/xiaomayi-ant/smart-agent-go/internal/streaming"
	"github.com/xiaomayi-ant/smart-agent-go/internal/threadstore"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// Server holds every dependency a request handler needs. It has no
// state of its own beyond what's injected -- cmd/server constructs one
// Server per process.
type Server struct {
	cfg      config.Config
	graph    *engine.Runnable
	saver    *checkpoint.Saver
	threads  *threadstore.Store
	registry *streaming.Registry
	kg       orchestrator.KGExecutor
	logger   log.Logger
}

// NewServer wires a Server from its dependencies. kg may be nil if the
// knowledge-graph worker isn't configured, in which case the approval
// endpoint always fails an approve=true request.
func NewServer(cfg config.Config, graph *engine.Runnable, saver *checkpoint.Saver, threads *threadstore.Store, registry *streaming.Registry, kg orchestrator.KGExecutor, logger log.Logger) *Server {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Server{
		cfg:      cfg,
		graph:    graph,
		saver:    saver,
		threads:  threads,
		registry: registry,
		kg:       kg,
		logger:   logger,
	}
}

// Routes returns the fully wired handler: CORS, then per-route auth,
// then the six documented endpoints plus health.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleHealth)

	mux.Handle("POST /api/threads", s.authMiddleware(http.HandlerFunc(s.handleCreateThread)))
	mux.Handle("POST /api/threads/{id}/runs/stream", s.authMiddleware(http.HandlerFunc(s.handleStreamRun)))
	mux.Handle("GET /api/threads/{id}/messages", s.authMiddleware(http.HandlerFunc(s.handleGetMessages)))
	mux.Handle("DELETE /api/threads/{id}", s.authMiddleware(http.HandlerFunc(s.handleDeleteThread)))
	mux.Handle("POST /api/threads/{id}/tools/approval", s.authMiddleware(http.HandlerFunc(s.handleApproveTool)))

	return s.corsMiddleware(mux)
}
