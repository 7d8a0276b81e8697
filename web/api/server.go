// Package api serves verification history and live run progress over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/hochfrequenz/swe-verify/internal/results"
)

// Store is the subset of the history store the API reads from.
type Store interface {
	LatestPerTask() ([]*results.Record, error)
	ListRun(runID string) ([]*results.Record, error)
}

// Server is the HTTP API server.
type Server struct {
	store    Store
	logsRoot string
	addr     string
	mux      *http.ServeMux
	sseHub   *SSEHub
}

// NewServer creates a new API server. logsRoot is the directory holding
// per-task log directories for the log tail endpoint.
func NewServer(store Store, logsRoot, addr string) *Server {
	s := &Server{
		store:    store,
		logsRoot: logsRoot,
		addr:     addr,
		mux:      http.NewServeMux(),
		sseHub:   NewSSEHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/summary", s.summaryHandler())
	s.mux.HandleFunc("/api/records", s.listRecordsHandler())
	s.mux.HandleFunc("/api/runs/", s.runRecordsHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/logs/ws", s.logTailHandler())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	go s.sseHub.Run()
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route mux for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Broadcast sends an event to all SSE clients.
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
