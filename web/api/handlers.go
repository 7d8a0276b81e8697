package api

import (
	"net/http"
	"strings"

	"github.com/hochfrequenz/swe-verify/internal/results"
)

// statusHandler reports basic liveness.
func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// summaryHandler aggregates the latest record of every task.
func (s *Server) summaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		records, err := s.store.LatestPerTask()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, results.Summarize(records))
	}
}

// listRecordsHandler returns the latest record per task, optionally
// filtered by ?status=passed|failed|skipped|build-failed.
func (s *Server) listRecordsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		records, err := s.store.LatestPerTask()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if status := r.URL.Query().Get("status"); status != "" {
			filtered := records[:0]
			for _, rec := range records {
				if rec.Status() == status {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		writeJSON(w, records)
	}
}

// runRecordsHandler returns all records of one batch run: /api/runs/{id}.
func (s *Server) runRecordsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if runID == "" || strings.Contains(runID, "/") {
			writeError(w, http.StatusBadRequest, "invalid run id")
			return
		}
		records, err := s.store.ListRun(runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(records) == 0 {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, records)
	}
}
