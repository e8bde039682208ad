// Package api serves the HTTP surface of the orchestrator: run history,
// pipeline status, manual triggers and a server-sent event stream.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerpool"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

// Store interface for run persistence
type Store interface {
	ListRuns(limit int) ([]runstore.RunSummary, error)
	GetRun(id string) (*domain.PipelineRun, error)
}

// Trigger receives pipeline triggers submitted over HTTP
type Trigger interface {
	Submit(t domain.Trigger) bool
	State() domain.PipelineState
}

// Server is the HTTP API server
type Server struct {
	store       Store
	trigger     Trigger
	coordinator *runnerpool.Coordinator
	addr        string
	mux         *http.ServeMux
	sseHub      *SSEHub
}

// NewServer creates a new API server. coordinator may be nil when
// distributed execution is disabled.
func NewServer(store Store, trigger Trigger, coordinator *runnerpool.Coordinator, addr string) *Server {
	s := &Server{
		store:       store,
		trigger:     trigger,
		coordinator: coordinator,
		addr:        addr,
		mux:         http.NewServeMux(),
		sseHub:      NewSSEHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/runs", s.listRunsHandler())
	s.mux.HandleFunc("/api/runs/", s.getRunHandler())
	s.mux.HandleFunc("/api/runners", s.listRunnersHandler())
	s.mux.HandleFunc("/api/trigger", s.triggerHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.sseHub.Run()
	return http.ListenAndServe(s.addr, s.mux)
}

// Broadcast sends an event to all SSE clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
