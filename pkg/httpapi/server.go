// Package httpapi exposes the service over HTTP: account and profile
// management, the intake log, daily needs, and the chat endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nutracoach/pkg/auth"
	"nutracoach/pkg/chat"
	"nutracoach/pkg/config"
	"nutracoach/pkg/logx"
	"nutracoach/pkg/metrics"
	"nutracoach/pkg/nutrition"
	"nutracoach/pkg/store"
	"nutracoach/pkg/worker"
)

// Server wires handlers, middleware, and the underlying http.Server.
type Server struct {
	httpServer *http.Server
	logger     *logx.Logger
}

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Ops      *store.Operations
	Tokens   *auth.TokenIssuer
	Chat     *chat.Service
	Diary    *nutrition.DiaryService
	Pool     *worker.Pool
	Usage    *metrics.QueryService
	Provider string
	Recorder metrics.Recorder
}

// NewServer builds the route table and returns a ready-to-start server.
func NewServer(cfg *config.ServerConfig, deps Deps) *Server {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NopRecorder{}
	}

	h := &handlers{
		ops:      deps.Ops,
		tokens:   deps.Tokens,
		chat:     deps.Chat,
		diary:    deps.Diary,
		pool:     deps.Pool,
		usage:    deps.Usage,
		provider: deps.Provider,
		recorder: deps.Recorder,
		logger:   logx.NewLogger("http"),
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated endpoints.
	authed := func(fn http.HandlerFunc) http.Handler {
		return h.requireAuth(fn)
	}
	mux.Handle("GET /my_profile", authed(h.myProfile))
	mux.Handle("POST /profile_edit", authed(h.profileEdit))
	mux.Handle("POST /insert_log", authed(h.insertLog))
	mux.Handle("POST /update_log", authed(h.updateLog))
	mux.Handle("GET /retrieve_log", authed(h.retrieveLog))
	mux.Handle("POST /delete_log", authed(h.deleteLog))
	mux.Handle("GET /dv_summation", authed(h.dvSummation))
	mux.Handle("GET /daily_needs", authed(h.dailyNeeds))
	mux.Handle("GET /history_7days", authed(h.history7Days))
	mux.Handle("POST /api/chat", authed(h.chatMessage))
	mux.Handle("GET /api/chat/task/{id}", authed(h.chatTask))
	mux.Handle("GET /api/chat/history", authed(h.chatHistory))
	mux.Handle("DELETE /api/chat/history", authed(h.chatHistoryClear))
	mux.Handle("GET /api/usage", authed(h.usageSummary))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h.withMetrics(mux),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logx.NewLogger("http"),
	}
}

// ListenAndServe starts serving. Blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
